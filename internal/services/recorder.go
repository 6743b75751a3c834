package services

import (
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/logger"
)

// LogRecorder writes every swipe to the log.
type LogRecorder struct {
	logger logger.Logger
}

func NewLogRecorder(log logger.Logger) *LogRecorder {
	return &LogRecorder{logger: log}
}

func (r *LogRecorder) Record(sessionID string, item models.ResultItem, action models.Interaction) {
	r.logger.Infof("[Swipe] session %s: %s %q (tmdb %d, %s)", sessionID, action, item.Title, item.TMDBID, item.Catalog)
}
