package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/ui"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

var (
	fileLogger *log.Logger
	once       sync.Once
	logFile    *os.File
)

func Init(path string) error {
	var err error
	once.Do(func() {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return
		}
		logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		fileLogger = log.New(logFile, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	})
	return err
}

func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

type ClassLogger struct {
	class   string
	session *model.Session
}

func NewLogger(v interface{}, session *model.Session) *ClassLogger {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return &ClassLogger{class: t.Name(), session: session.LoggingSession()}
}

func NewNamed(name string, session *model.Session) *ClassLogger {
	return &ClassLogger{class: name, session: session.LoggingSession()}
}

// With returns a logger for the same class scoped to session.
func (l *ClassLogger) With(session *model.Session) *ClassLogger {
	return &ClassLogger{class: l.class, session: session.LoggingSession()}
}

func (l *ClassLogger) label() string {
	if l.session != nil {
		return l.session.Label()
	}
	return l.class
}

// Log writes to the log file and the console.
func (l *ClassLogger) Log(msg string) {
	l.write(msg, 3)
	ui.UpdateStatus(l.label(), shortenForDisplay(msg), ui.LevelInfo)
}

func (l *ClassLogger) Success(msg string) {
	l.write(msg, 3)
	ui.UpdateStatus(l.label(), shortenForDisplay(msg), ui.LevelSuccess)
}

func (l *ClassLogger) Warn(msg string) {
	l.write("WARN: "+msg, 3)
	ui.UpdateStatus(l.label(), shortenForDisplay(msg), ui.LevelWarning)
}

func (l *ClassLogger) Error(msg string) {
	l.write("ERROR: "+msg, 3)
	ui.UpdateStatus(l.label(), shortenForDisplay(msg), ui.LevelError)
}

// JustLog writes to the log file only.
func (l *ClassLogger) JustLog(msg string) {
	l.write(msg, 3)
}

func (l *ClassLogger) LogObject(msg string, obj interface{}) {
	if fileLogger != nil {
		formattedString, err := utils.FormatObject(obj)
		if err != nil {
			l.write(fmt.Sprintf("Error formatting object: %v", err), 3)
			return
		}
		l.write(fmt.Sprintf("%s : \n%v", msg, formattedString), 3)
	}
}

func (l *ClassLogger) write(msg string, skip int) {
	if fileLogger == nil {
		return
	}
	funcName := callerFunc(skip)
	if l.session != nil {
		fileLogger.Printf("[%s][%s][%s] %s", l.class, l.session.Label(), funcName, msg)
		return
	}
	fileLogger.Printf("[%s][%s] %s", l.class, funcName, msg)
}

func callerFunc(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	parts := strings.Split(fn.Name(), ".")
	return parts[len(parts)-1]
}

func shortenForDisplay(msg string) string {
	const maxLen = 140
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	return string(runes[:maxLen-1]) + "…"
}
