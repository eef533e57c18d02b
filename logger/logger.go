// Package logger adapts popular logging libraries to ktree's Logger interface.
//
// The standard library's *slog.Logger already implements ktree.Logger and
// needs no adapter.
//
// Example with zap:
//
//	import (
//	    "go.uber.org/zap"
//
//	    "ktree"
//	    "ktree/logger"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//	    defer zapLogger.Sync()
//
//	    tree, err := ktree.New[int](ktree.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    tree.Insert(42)
//	}
package logger
