package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Sessioner is the part of *mongo.Client needed to open a transaction scope.
type Sessioner interface {
	StartSession(opts ...*options.SessionOptions) (mongo.Session, error)
}

// RunTransaction executes fn inside a single multi-document transaction. The transaction is
// committed only when fn returns nil; every other exit path, panics included, aborts it.
// There is no retry: a failed commit is returned to the caller as is.
func RunTransaction(ctx context.Context, client Sessioner, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// abort uses a fresh context so a cancelled request still releases its locks
		_ = session.AbortTransaction(context.Background())
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	sessCtx := mongo.NewSessionContext(ctx, session)
	if err := fn(sessCtx); err != nil {
		return err
	}
	if err := session.CommitTransaction(sessCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
