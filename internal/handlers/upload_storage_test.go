package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write(content)
	}
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/menu-items/upload-image", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadMenuImage_SavesUnderPublicRoot(t *testing.T) {
	root := t.TempDir()
	r := gin.New()
	r.POST("/api/menu-items/upload-image", UploadMenuImage(NewImageStore(root)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "tacos.PNG", []byte("png-bytes")))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	imagePath, _ := dataOf(t, decodeBody(t, w))["image"].(string)
	if !strings.HasPrefix(imagePath, "/uploads/menu/") || !strings.HasSuffix(imagePath, ".png") {
		t.Fatalf("unexpected image path %q", imagePath)
	}
	saved, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(imagePath, "/"))))
	if err != nil || string(saved) != "png-bytes" {
		t.Fatalf("image not written: %v", err)
	}
}

func TestUploadMenuImage_Rejections(t *testing.T) {
	r := gin.New()
	r.POST("/api/menu-items/upload-image", UploadMenuImage(NewImageStore(t.TempDir())))

	for name, req := range map[string]*http.Request{
		"no file":      uploadRequest(t, "", nil),
		"no extension": uploadRequest(t, "photo", []byte("x")),
		"wrong type":   uploadRequest(t, "menu.pdf", []byte("x")),
		"too large":    uploadRequest(t, "big.jpg", bytes.Repeat([]byte("a"), maxImageSize+1)),
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestImageStoreDelete(t *testing.T) {
	root := t.TempDir()
	store := NewImageStore(root)

	dir := filepath.Join(root, "uploads", "menu")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := store.Delete("/uploads/menu/a.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected file removed")
	}
	if err := store.Delete("/uploads/menu/a.jpg"); err != nil {
		t.Fatalf("deleting a missing file should be a no-op: %v", err)
	}
	if err := store.Delete("https://cdn.example/a.jpg"); err != nil {
		t.Fatalf("external urls should be ignored: %v", err)
	}
	if err := store.Delete("/images/menu/a.jpg"); err == nil {
		t.Fatalf("expected non-upload path to be refused")
	}
	if err := store.Delete("/uploads/../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be refused")
	}
}
