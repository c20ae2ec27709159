package bootstrap

import "go.uber.org/zap"

// Guard runs fn and routes a returned error or a recovered panic to the
// presenter, so no background failure goes unnoticed. Start it with go
// for asynchronous work.
func Guard(p Presenter, logger *zap.Logger, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			err := &PanicError{Value: rec}
			logger.Error("recovered panic", zap.Error(err))
			p.ShowError(err)
		}
	}()

	if err := fn(); err != nil {
		logger.Error("background task failed", zap.Error(err))
		p.ShowError(err)
	}
}
