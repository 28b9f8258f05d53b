package observability

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/jx"
)

type LokiClient struct {
	url        string
	username   string
	apiKey     string
	httpClient *http.Client
	enabled    bool
	appName    string
}

var defaultClient *LokiClient

func Init() {
	url := os.Getenv("GRAFANA_LOKI_URL")
	username := os.Getenv("GRAFANA_LOKI_USER")
	apiKey := os.Getenv("GRAFANA_LOKI_API_KEY")

	appName := os.Getenv("APP_ENV")
	if appName == "" {
		appName = "mcp-gitlab-mr-dev"
	}

	if url == "" || username == "" || apiKey == "" {
		log.Println("Loki not configured, structured logging disabled")
		defaultClient = &LokiClient{enabled: false, appName: appName}
		return
	}

	defaultClient = &LokiClient{
		url:        url + "/loki/api/v1/push",
		username:   username,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		enabled:    true,
		appName:    appName,
	}
	log.Println("Loki client initialized")
}

func Push(labels map[string]string, data map[string]any) {
	if defaultClient == nil || !defaultClient.enabled {
		return
	}

	go defaultClient.push(labels, data)
}

func (c *LokiClient) push(labels map[string]string, data map[string]any) {
	if labels == nil {
		labels = make(map[string]string)
	}
	labels["app"] = c.appName

	timestamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	body := encodePush(labels, timestamp, data)

	httpReq, err := http.NewRequest("POST", c.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("Loki: failed to create request: %v", err)
		return
	}

	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("Loki: failed to send: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Loki: unexpected status code: %d", resp.StatusCode)
		return
	}
}

// encodePush builds the Loki push API payload:
// {"streams":[{"stream":{labels},"values":[[ts,line]]}]}
func encodePush(labels map[string]string, timestamp string, data map[string]any) []byte {
	var line jx.Encoder
	line.Obj(func(e *jx.Encoder) {
		for k, v := range data {
			e.Field(k, func(e *jx.Encoder) { encodeValue(e, v) })
		}
	})

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("streams", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("stream", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							for k, v := range labels {
								e.Field(k, func(e *jx.Encoder) { e.Str(v) })
							}
						})
					})
					e.Field("values", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							e.Arr(func(e *jx.Encoder) {
								e.Str(timestamp)
								e.Str(string(line.Bytes()))
							})
						})
					})
				})
			})
		})
	})
	return e.Bytes()
}

func encodeValue(e *jx.Encoder, v any) {
	switch x := v.(type) {
	case string:
		e.Str(x)
	case int:
		e.Int(x)
	case int64:
		e.Int64(x)
	case bool:
		e.Bool(x)
	case []string:
		e.Arr(func(e *jx.Encoder) {
			for _, s := range x {
				e.Str(s)
			}
		})
	default:
		e.Str(fmt.Sprintf("%v", x))
	}
}

// LogToolCall logs a tool call to Loki
func LogToolCall(requestID, module, tool string, durationMs int64, status string, errMsg string) {
	level := "info"
	if status == "error" {
		level = "error"
	}
	labels := map[string]string{
		"module": module,
		"status": status,
		"level":  level,
	}

	data := map[string]any{
		"request_id":  requestID,
		"module":      module,
		"tool":        tool,
		"duration_ms": durationMs,
		"status":      status,
	}

	if errMsg != "" {
		data["error"] = errMsg
	}

	Push(labels, data)
}

// LogRequest logs an incoming request to Loki
func LogRequest(method, path string, statusCode int, durationMs int64) {
	labels := map[string]string{
		"type":   "request",
		"method": method,
		"path":   path,
		"level":  "info",
	}

	data := map[string]any{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	Push(labels, data)
}

// LogError logs an error to Loki
func LogError(context string, err error) {
	labels := map[string]string{
		"type":  "error",
		"level": "error",
	}

	data := map[string]any{
		"context": context,
		"error":   fmt.Sprintf("%v", err),
	}

	Push(labels, data)
}
