package platform

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// fallbackWarner logs blocked-move warnings at most once per fallbackWarnEvery.
type fallbackWarner struct {
	lastNS int64
}

func (w *fallbackWarner) warn(logger *zap.Logger, msg string, err error) {
	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&w.lastNS)
	if last != 0 && time.Duration(now-last) < fallbackWarnEvery {
		logger.Debug(msg, zap.Error(err))
		return
	}
	atomic.StoreInt64(&w.lastNS, now)
	logger.Warn(msg, zap.Error(err))
}
