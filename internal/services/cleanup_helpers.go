package services

import "time"

func (j *SessionJanitor) performCleanup() {
	j.mu.Lock()
	idleTTL := j.idleTTL
	retention := j.retentionPeriod
	j.mu.Unlock()

	closed := j.closeIdleSessions(idleTTL)
	purged := j.purgeStalePages(retention)
	expired := j.cleanExpiredCache()

	if closed+purged+expired > 0 {
		j.logger.Infof("[Janitor] cleanup completed: %d sessions closed, %d pages purged, %d cache entries expired", closed, purged, expired)
		return
	}
	j.logger.Debugf("[Janitor] nothing to clean up")
}

func (j *SessionJanitor) closeIdleSessions(idleTTL time.Duration) int {
	if j.store == nil {
		return 0
	}
	return j.store.CloseIdle(idleTTL, j.now())
}

func (j *SessionJanitor) purgeStalePages(retention time.Duration) int {
	if j.db == nil {
		return 0
	}
	purged, err := j.db.PurgeOlderThan(retention)
	if err != nil {
		j.logger.Errorf("[Janitor] failed to purge stored pages: %v", err)
		return 0
	}
	return purged
}

func (j *SessionJanitor) cleanExpiredCache() int {
	if j.cache == nil {
		return 0
	}
	return j.cache.CleanExpired()
}
