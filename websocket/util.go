package websocket

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fatih/color"
)

// Frame tracing helpers used in debug mode. They write to color.Output.

var (
	timeColor  = color.New(color.FgHiBlack)
	labelColor = color.New(color.FgHiCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgHiYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	dataColor  = color.New(color.FgHiMagenta)
)

// PrintConnectMessage traces a completed handshake.
func PrintConnectMessage(endpoint string) {
	printLine(okColor, "🔗 CONNECT", endpoint)
}

// PrintTextMessage traces a text frame.
func PrintTextMessage(data []byte, note string) {
	printLine(labelColor, "📝 TEXT", fmt.Sprintf("%s (%d bytes): %s", note, len(data), dataColor.Sprint(string(data))))
}

// PrintBinaryMessage traces a binary frame as hex.
func PrintBinaryMessage(data []byte, note string) {
	printLine(labelColor, "📦 BINARY", fmt.Sprintf("%s (%d bytes): %s", note, len(data), dataColor.Sprint(hex.EncodeToString(data))))
}

// PrintPingMessage traces a ping control frame.
func PrintPingMessage(data []byte, note string) {
	printLine(warnColor, "🏓 PING", fmt.Sprintf("%s: %s", note, data))
}

// PrintPongMessage traces a pong control frame.
func PrintPongMessage(data []byte, note string) {
	printLine(warnColor, "🏓 PONG", fmt.Sprintf("%s: %s", note, data))
}

// PrintErrorMessage traces a connection error.
func PrintErrorMessage(err error) {
	printLine(errColor, "⛔ ERROR", err.Error())
}

// PrintRetryMessage traces a scheduled reconnect.
func PrintRetryMessage(attempt, maxAttempts uint, delay time.Duration, err error) {
	msg := fmt.Sprintf("attempt %d/%d in %v", attempt, maxAttempts, delay)
	if err != nil {
		msg += ": " + err.Error()
	}

	printLine(warnColor, "🔁 RETRY", msg)
}

// PrintCloseMessage traces a close frame.
func PrintCloseMessage(code int, reason string) {
	printLine(errColor, "🔒 CLOSE", fmt.Sprintf("%d %s", code, reason))
}

func printLine(c *color.Color, label, msg string) {
	_, _ = fmt.Fprintf(color.Output, "%s %s %s\n",
		timeColor.Sprint(time.Now().Format("15:04:05.000")),
		c.Sprintf("%-10s", label),
		msg,
	)
}
