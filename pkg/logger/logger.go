// Package logger writes one JSON object per line. Package-level helpers go
// through a process-wide logger set up by Init or InitWithWriter.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

const (
	maxInlineBody  = 1024
	maxSummaryBody = 200
)

type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	UserID    *string                `json:"user_id,omitempty"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Source    string                 `json:"source,omitempty"`
}

type Logger struct {
	output io.Writer
	color  bool
}

var globalLogger *Logger

// New colours lines only when writing to the terminal's stdout.
func New(output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{output: output, color: output == os.Stdout}
}

func Init() {
	globalLogger = New(os.Stdout)
}

// InitWithWriter routes all package-level logging to w.
func InitWithWriter(w io.Writer) {
	globalLogger = New(w)
}

var levelColors = map[LogLevel]string{
	LevelInfo:  "\033[36m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
}

func (l *Logger) write(level LogLevel, action string, userID *string, details map[string]interface{}, err error) {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		UserID:    userID,
		Action:    action,
		Details:   details,
		Source:    callerSource(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	data, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		data, _ = json.Marshal(LogEntry{Timestamp: entry.Timestamp, Level: LevelError, Action: action, Error: marshalErr.Error()})
	}
	if l.color {
		fmt.Fprintf(l.output, "%s%s\033[0m\n", levelColors[level], data)
		return
	}
	fmt.Fprintf(l.output, "%s\n", data)
}

func emit(level LogLevel, action string, userID *string, details map[string]interface{}, err error) {
	if globalLogger != nil {
		globalLogger.write(level, action, userID, details, err)
	}
}

func Info(action string, details map[string]interface{}) {
	emit(LevelInfo, action, nil, details, nil)
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	emit(LevelInfo, action, &userID, details, nil)
}

func Warn(action string, details map[string]interface{}) {
	emit(LevelWarn, action, nil, details, nil)
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	emit(LevelWarn, action, &userID, details, nil)
}

func Error(action string, err error, details map[string]interface{}) {
	emit(LevelError, action, nil, details, err)
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	emit(LevelError, action, &userID, details, err)
}

// GetUserIDFromContext reads the id RequireAuth stores in locals.
func GetUserIDFromContext(c *fiber.Ctx) *string {
	if id, ok := c.Locals("userID").(string); ok {
		return &id
	}
	return nil
}

// callerSource is the file:line of the code that called a package helper.
func callerSource() string {
	if _, file, line, ok := runtime.Caller(4); ok {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

var secretFields = []string{"password", "currentPassword", "newPassword", "secret", "token", "inviteToken"}

// Chat bodies are private between participants; only their size is logged.
var privateTextFields = []string{"content"}

func redactSensitiveFields(body map[string]interface{}) {
	for _, field := range secretFields {
		if _, exists := body[field]; exists {
			body[field] = "[REDACTED]"
		}
	}
	for _, field := range privateTextFields {
		if text, ok := body[field].(string); ok {
			body[field] = fmt.Sprintf("[%d chars]", len([]rune(text)))
		}
	}
}

// GetRequestBodySummary describes a request body without leaking secrets or
// message text. Uploads are reported by size only.
func GetRequestBodySummary(c *fiber.Ctx) string {
	body := c.Body()
	switch {
	case len(body) == 0:
		return "empty"
	case strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm):
		return fmt.Sprintf("multipart (%d bytes)", len(body))
	case len(body) > maxInlineBody:
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Sprintf("binary (%d bytes)", len(body))
	}
	redactSensitiveFields(fields)
	out, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("binary (%d bytes)", len(body))
	}
	if len(out) > maxSummaryBody {
		return string(out[:maxSummaryBody]) + "..."
	}
	return string(out)
}

func GetResponseSizeSummary(c *fiber.Ctx) string {
	body := c.Response().Body()
	switch {
	case len(body) == 0:
		return "empty"
	case len(body) > maxInlineBody:
		return fmt.Sprintf("large (%d bytes)", len(body))
	default:
		return fmt.Sprintf("small (%d bytes)", len(body))
	}
}

func GenerateRequestID() string {
	return uuid.New().String()
}
