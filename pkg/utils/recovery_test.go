package utils

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
)

func TestSafeGoRunsFunction(t *testing.T) {
	logger.Log = zaptest.NewLogger(t)

	done := make(chan bool, 1)
	SafeGo(func() {
		done <- true
	}, nil)

	if !<-done {
		t.Error("expected function to execute")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	logger.Log = zaptest.NewLogger(t)

	var wg sync.WaitGroup
	wg.Add(1)
	var recovered interface{}

	SafeGo(func() {
		defer wg.Done()
		panic("boom")
	}, func(r interface{}, stack []byte) {
		recovered = r
	})

	wg.Wait()
	if recovered != "boom" {
		t.Errorf("expected recovered panic 'boom', got %v", recovered)
	}
}

func TestRecoverWithLog(t *testing.T) {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	// Must swallow the panic entirely.
	func() {
		defer RecoverWithLog(ctx, "test operation")
		panic("boom")
	}()
}
