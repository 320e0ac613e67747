package logging

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wlo1561411/HappyTime/logger"
)

// Helper helps with writing logs to io.Writers.
// Helper implements logger.Logger interface.
// Writing is done concurrently without blocking the current thread.
type Helper struct {
	service     string
	callOnErr   func(error)
	callOnFatal func(error)
	writers     []io.Writer
	wg          *sync.WaitGroup
}

// New creates new Helper tagging every entry with the service name.
func New(service string, callOnErr, callOnFatal func(error), writers ...io.Writer) Helper {
	return Helper{
		service:     service,
		callOnErr:   callOnErr,
		callOnFatal: callOnFatal,
		writers:     writers,
		wg:          &sync.WaitGroup{},
	}
}

// Debug writes debug log.
func (h Helper) Debug(msg string) {
	h.write(h.entry(logger.LevelDebug, msg))
}

// Info writes info log.
func (h Helper) Info(msg string) {
	h.write(h.entry(logger.LevelInfo, msg))
}

// Warn writes warning log.
func (h Helper) Warn(msg string) {
	h.write(h.entry(logger.LevelWarn, msg))
}

// Error writes error log.
func (h Helper) Error(msg string) {
	h.write(h.entry(logger.LevelError, msg))
}

// Fatal writes fatal log and calls the fatal callback once the entry is written.
func (h Helper) Fatal(msg string) {
	l := h.entry(logger.LevelFatal, msg)
	h.write(l)
	h.Wait()
	if h.callOnFatal != nil {
		h.callOnFatal(fatalError(msg))
	}
}

// Wait blocks until all pending writes are done.
func (h Helper) Wait() {
	h.wg.Wait()
}

func (h Helper) entry(level, msg string) *logger.Log {
	return &logger.Log{
		ID:        primitive.NewObjectID(),
		CreatedAt: time.Now(),
		Service:   h.service,
		Level:     level,
		Msg:       msg,
	}
}

func (h Helper) write(l *logger.Log) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		raw, err := json.Marshal(l)
		if err != nil {
			h.onErr(err)
			return
		}
		for _, w := range h.writers {
			if _, err := w.Write(raw); err != nil {
				h.onErr(err)
			}
		}
	}()
}

func (h Helper) onErr(err error) {
	if h.callOnErr != nil {
		h.callOnErr(err)
	}
}

type fatalError string

func (e fatalError) Error() string {
	return string(e)
}
