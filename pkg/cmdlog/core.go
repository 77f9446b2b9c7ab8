package cmdlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFileLogger returns a zap logger that appends JSON records to path.
// It backs the command audit log: one record per crashctl invocation.
func NewFileLogger(path string) (*zap.Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return zap.New(newFileCore(f)), nil
}

func newFileCore(f *os.File) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	enc := zapcore.NewJSONEncoder(cfg)
	ws := zapcore.Lock(zapcore.AddSync(f))
	passAllMessages := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return true
	})
	return zapcore.NewCore(enc, ws, passAllMessages)
}
