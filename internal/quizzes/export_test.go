package quizzes

// SetAfterScan installs a callback that Reindex runs between scanning the
// documents and reconciling the index.
func SetAfterScan(s *RedisStore, fn func()) { s.afterScan = fn }
