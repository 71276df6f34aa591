package fullyrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/config"
)

// CommandResult is the outcome of one remote admin call, in the same
// shape Fully Kiosk itself answers with.
type CommandResult struct {
	Status     string `json:"status"`
	Statustext string `json:"statustext"`
}

func errorResult(format string, args ...any) CommandResult {
	return CommandResult{Status: "Error", Statustext: fmt.Sprintf(format, args...)}
}

// commandSpec maps a bridge action onto the Fully Kiosk REST command.
type commandSpec struct {
	// cmd is the REST command name.
	cmd string

	// key selects the setting for setStringSetting/setBooleanSetting.
	key string

	// valueFrom lists the payload keys tried in order for the value
	// parameter.
	valueFrom []string

	// urlFrom names the payload key carried as the url parameter.
	urlFrom string

	// binary marks commands answering with raw bytes instead of JSON.
	binary bool
}

// commands is the supported action table. Anything not listed here is
// rejected before a request leaves the relay.
var commands = map[string]commandSpec{
	"screenOn":         {cmd: "screenOn"},
	"screenOff":        {cmd: "screenOff"},
	"setBrightness":    {cmd: "setStringSetting", key: "screenBrightness", valueFrom: []string{"value", "brightness"}},
	"loadUrl":          {cmd: "loadUrl", urlFrom: "url"},
	"loadStartUrl":     {cmd: "loadStartUrl"},
	"reload":           {cmd: "loadCurrentUrl"},
	"startScreensaver": {cmd: "startScreensaver"},
	"stopScreensaver":  {cmd: "stopScreensaver"},
	"restartApp":       {cmd: "restartApp"},
	"exitApp":          {cmd: "exitApp"},
	"reboot":           {cmd: "rebootDevice"},
	"screenshot":       {cmd: "getScreenshot", binary: true},
	"deviceInfo":       {cmd: "deviceInfo"},
	"setStartUrl":      {cmd: "setStringSetting", key: "startURL", valueFrom: []string{"value", "url"}},
	"setKioskMode":     {cmd: "setBooleanSetting", key: "kioskMode", valueFrom: []string{"value"}},
}

// KnownAction reports whether the action maps to a Fully Kiosk command.
func KnownAction(action string) bool {
	_, ok := commands[action]
	return ok
}

// Client executes commands against Fully Kiosk's remote admin HTTP
// interface on the device's LAN address.
type Client struct {
	http              *http.Client
	requestTimeout    time.Duration
	screenshotTimeout time.Duration
}

// NewClient creates a Client with timeouts from config.
func NewClient(cfg config.RelayConfig) *Client {
	return &Client{
		http:              &http.Client{},
		requestTimeout:    cfg.GetRequestTimeout(),
		screenshotTimeout: cfg.GetScreenshotTimeout(),
	}
}

// Execute runs one command against a device and always returns a
// result; transport and device errors are folded into an Error result
// so the caller can acknowledge them the same way as successes.
func (c *Client) Execute(ctx context.Context, dev *RegisteredDevice, action string, params map[string]any) CommandResult {
	spec, ok := commands[action]
	if !ok {
		return errorResult("Unknown command: %s", action)
	}

	query := url.Values{}
	query.Set("cmd", spec.cmd)
	query.Set("type", "json")
	query.Set("password", dev.Password)
	if spec.key != "" {
		query.Set("key", spec.key)
	}
	for _, from := range spec.valueFrom {
		if v, ok := params[from]; ok {
			query.Set("value", fmt.Sprint(v))
			break
		}
	}
	if spec.urlFrom != "" {
		if v, ok := params[spec.urlFrom].(string); ok && v != "" {
			query.Set("url", v)
		}
	}

	endpoint := fmt.Sprintf("http://%s:%d/?%s", dev.IP, dev.Port, query.Encode())

	timeout := c.requestTimeout
	if spec.binary {
		timeout = c.screenshotTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errorResult("building request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errorResult("Device not reachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult("reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return errorResult("HTTP %d from device", resp.StatusCode)
	}

	// A screenshot answers with image data on success but with Fully's
	// usual JSON body on errors such as a wrong password.
	if spec.binary && strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return CommandResult{
			Status:     "OK",
			Statustext: fmt.Sprintf("Screenshot captured (%d bytes)", len(body)),
		}
	}

	var result CommandResult
	if err := json.Unmarshal(body, &result); err != nil || result.Status == "" {
		// Some commands answer with plain text or a larger JSON
		// document (deviceInfo). Treat a 200 as success either way.
		return CommandResult{Status: "OK", Statustext: string(body)}
	}
	return result
}
