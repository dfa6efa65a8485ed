// Package api 封装与文档问答服务的 HTTP API 交互
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout 单次请求超时
const DefaultTimeout = 30 * time.Second

// TokenSource 提供当前会话 token，为空表示未登录
type TokenSource interface {
	Token() string
}

// TokenFunc 函数适配为 TokenSource
type TokenFunc func() string

// Token 实现 TokenSource
func (f TokenFunc) Token() string { return f() }

// Options 客户端构造参数
type Options struct {
	BaseURL    string        // 例如 http://localhost:8000/api
	Timeout    time.Duration // 0 表示使用 DefaultTimeout
	Retry      RetryPolicy
	Logger     *zap.Logger
	HTTPClient *http.Client // 测试时可注入
}

// Client API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	retry      RetryPolicy
	logger     *zap.Logger
	seq        atomic.Uint64
}

// NewClient 创建 API 客户端
func NewClient(opts Options, tokens TokenSource) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		retry:      opts.Retry,
		logger:     logger,
	}
}

// RequestOptions 单次调用参数
type RequestOptions struct {
	Method string      // 默认 GET
	Body   interface{} // nil、*FormData 或任意可 JSON 编码的值
	Header http.Header // 额外请求头
}

// Call 发起请求
// 成功且有 JSON 内容时返回原始 JSON；无内容时返回 nil
// GET 请求按重试策略重试，写请求只发一次
func (c *Client) Call(ctx context.Context, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	attempts := 1
	if method == http.MethodGet && c.retry.MaxAttempts > 1 {
		attempts = c.retry.MaxAttempts
	}

	for attempt := 0; ; attempt++ {
		raw, err := c.do(ctx, method, endpoint, opts)
		if err == nil || attempt+1 >= attempts || !isRetryable(err) {
			return raw, err
		}

		wait := c.retry.delay(attempt)
		c.logger.Warn("请求失败，准备重试",
			zap.String("method", method),
			zap.String("path", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if sleepErr := sleepWithContext(ctx, wait); sleepErr != nil {
			return nil, err
		}
	}
}

// do 执行一次 HTTP 请求
func (c *Client) do(ctx context.Context, method, endpoint string, opts RequestOptions) (json.RawMessage, error) {
	seq := c.seq.Add(1)
	requestID := uuid.NewString()

	var body io.Reader
	contentType := "application/json"
	switch b := opts.Body.(type) {
	case nil:
	case *FormData:
		// multipart 使用表单自带的 boundary
		body = b.reader()
		contentType = b.ContentType()
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("编码请求体失败: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	c.logger.Debug("api request",
		zap.Uint64("seq", seq),
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: parseErrorMessage(respBody)}
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	if !isJSONContent(resp.Header.Get("Content-Type")) {
		return nil, nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("解析响应失败: %s %s 返回了无效的 JSON", method, endpoint)
	}
	return json.RawMessage(respBody), nil
}

// classifyTransportError 区分取消、超时与其他网络错误
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("请求已取消: %w", context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &NetworkError{Err: err}
}

func isJSONContent(header string) bool {
	if header == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// parseErrorMessage 从错误响应中提取可读信息
// 依次尝试 error、detail、字段错误表，都没有时返回通用信息
func parseErrorMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) == 0 {
		return genericErrorMessage
	}

	for _, key := range []string{"error", "detail"} {
		if raw, ok := payload[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}

	fields := make([]string, 0, len(payload))
	for k := range payload {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, field := range fields {
		msg := firstFieldMessage(payload[field])
		if msg == "" {
			continue
		}
		if field == "non_field_errors" {
			return msg
		}
		return field + ": " + msg
	}
	return genericErrorMessage
}

func firstFieldMessage(raw json.RawMessage) string {
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return list[0]
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// decode 解析 JSON 响应，响应为空视为错误
func decode[T any](raw json.RawMessage, what string) (*T, error) {
	if raw == nil {
		return nil, fmt.Errorf("%s: 响应为空", what)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("解析%s响应失败: %w", what, err)
	}
	return &out, nil
}
