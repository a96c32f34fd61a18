package handlers

import (
	"errors"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxPageLimit = 100

var errInvalidPagination = errors.New("page and limit must be positive integers")

type pageInfo struct {
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// parsePaginationParams returns ok=false when neither parameter is set; those endpoints
// return the full result set.
func parsePaginationParams(pageStr, limitStr string) (page int64, limit int64, ok bool, err error) {
	if pageStr == "" && limitStr == "" {
		return 0, 0, false, nil
	}
	page, limit = 1, 20

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, false, errInvalidPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, false, errInvalidPagination
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, true, nil
}

func applyPage(opts *options.FindOptions, page, limit int64) *options.FindOptions {
	return opts.SetSkip((page - 1) * limit).SetLimit(limit)
}

func newPageInfo(page, limit, total int64) pageInfo {
	info := pageInfo{Page: page, Limit: limit, Total: total}
	if total > 0 {
		info.TotalPages = int64(math.Ceil(float64(total) / float64(limit)))
	}
	return info
}
