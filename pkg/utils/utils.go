package utils

import (
	"context"
	"log"
	"runtime/debug"
	"strings"
	"unicode"
	"unicode/utf8"

	"rivalwatch/pkg/logger"
)

// GoSafe runs fn in a goroutine and recovers from panics so a single
// misbehaving task cannot take down the service.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// ShouldContinue reports whether the context is still alive, logging once when
// it is not so worker loops can bail out quietly.
func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		log.Warn("context cancelled, stopping work", logger.ErrorField(ctx.Err()))
		return false
	default:
		return true
	}
}

// CleanToValidUTF8 strips invalid UTF-8 sequences and NUL bytes. Postgres
// rejects text columns containing \x00.
func CleanToValidUTF8(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

// SafeText collapses runs of whitespace into single spaces and trims the
// result, returning text safe to persist and embed in prompts.
func SafeText(s string) string {
	return strings.Join(strings.Fields(CleanToValidUTF8(s)), " ")
}

func ContainsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func ToPointer[T any](v T) *T {
	return &v
}

// CapitalizeSentence upper-cases the first letter of s.
func CapitalizeSentence(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// TruncateText cuts s down to at most max runes, appending an ellipsis when
// anything was removed.
func TruncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
