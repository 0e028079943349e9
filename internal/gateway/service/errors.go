package service

import "errors"

// ErrInvalidInput marks request validation failures so the HTTP layer can
// answer 400 instead of 500.
var ErrInvalidInput = errors.New("invalid request")

// ErrWatchItemInactive is returned when a run is requested for a deactivated
// watch item.
var ErrWatchItemInactive = errors.New("watch item is inactive")
