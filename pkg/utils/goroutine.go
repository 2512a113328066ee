package utils

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/1602/roco/pkg/logger"
)

// SafeGo 安全地启动一个 goroutine，自动捕获 panic 并记录日志
func SafeGo(name string, fn func()) {
	SafeGoWithCallback(name, fn, nil)
}

// SafeGoWithCallback 安全地启动一个 goroutine，panic 时调用 onPanic。
// 远程分发依赖 onPanic 让汇合屏障仍然计数。
func SafeGoWithCallback(name string, fn func(), onPanic func(r any)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panic recovered",
					zap.String("goroutine", name),
					zap.String("panic", fmt.Sprint(r)),
					zap.ByteString("stack", debug.Stack()),
				)
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
