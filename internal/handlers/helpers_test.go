package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/online-compiler-go/internal/handlers"
	"github.com/serroba/online-compiler-go/internal/messaging"
	"github.com/serroba/online-compiler-go/internal/session"
	"github.com/stretchr/testify/require"
)

var errPublish = errors.New("publish error")

// recordingPublish returns a publish function that keeps every event.
func recordingPublish[T any](events *[]*T) messaging.Publish[T] {
	return func(_ context.Context, event *T) error {
		*events = append(*events, event)

		return nil
	}
}

// errorPublish returns a publish function that always fails.
func errorPublish[T any]() messaging.Publish[T] {
	return func(context.Context, *T) error { return errPublish }
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var se huma.StatusError
	require.ErrorAs(t, err, &se)

	return se.GetStatus()
}

func asUser(id, email string) context.Context {
	ctx := session.ContextWithSubject(context.Background(), session.Subject{ID: id, Email: email})

	return handlers.ContextWithRequestMeta(ctx, handlers.RequestMeta{ClientIP: "198.51.100.7"})
}

