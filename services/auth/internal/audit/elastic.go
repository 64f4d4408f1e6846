// Package audit indexes auth audit records (register/login/logout attempts)
// into Elasticsearch, one index per concern. Records are best-effort: a
// failed write never fails the auth flow that produced it.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

const (
	IndexRegister = "user-register-logs"
	IndexLogin    = "user-login-logs"
	IndexLogout   = "user-logout-logs"
)

type Logger struct {
	es *elasticsearch.Client
}

func NewLogger(url, username, password string) (*Logger, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	return &Logger{es: client}, nil
}

type record struct {
	Message   string `json:"message"`
	UserID    uint   `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (l *Logger) Record(ctx context.Context, index, message string, userID uint, username string) error {
	doc := record{
		Message:   message,
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}

	res, err := l.es.Index(index, bytes.NewReader(body), l.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("audit: index record: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("audit: index record: %s", res.Status())
	}

	return nil
}
