// Package logging provides categorized structured logging for the context
// pipeline. Every subsystem logs through a named child of one shared zap
// logger so a single request can be traced across trimming, retrieval,
// assembly and dispatch.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a pipeline subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and configuration loading
	CategoryContext   Category = "context"   // History trimming and assembly
	CategoryRetrieval Category = "retrieval" // RAG backend calls
	CategoryAPI       Category = "api"       // LLM provider calls
	CategoryRouting   Category = "routing"   // Provider selection
	CategoryConfig    Category = "config"    // Config store and watcher
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Initialize installs the process-wide logger. Debug mode switches to a
// development config with debug-level output. Safe to call more than once;
// the last call wins.
func Initialize(debug bool) error {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err = cfg.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger replaces the process-wide logger. Tests use this with
// zap.NewNop() or an observed logger.
func SetLogger(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	root = logger
}

// Get returns a sugared logger named for the category.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(string(cat)).Sugar()
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
