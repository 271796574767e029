package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends collection reports to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishReport posts a plain-text run summary to Telegram.
func (n *Notifier) PublishReport(ctx context.Context, report domain.CollectReport) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatReport(report))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatReport(r domain.CollectReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "뉴스 수집 완료 (%s ~ %s)\n", r.DateFrom, r.DateTo)
	fmt.Fprintf(&b, "저장 %d / 수집 %d, 중복 %d, 거부 %d, 실패 %d, 만료 삭제 %d\n",
		r.Total, r.Fetched, r.Skipped, r.Rejected, r.Failed, r.Deleted)
	if r.SourceErrs > 0 {
		fmt.Fprintf(&b, "소스 오류 %d건\n", r.SourceErrs)
	}
	for _, tc := range r.PerTheme {
		fmt.Fprintf(&b, "- %s: %d/%d\n", tc.Theme, tc.Stored, tc.Fetched)
	}
	fmt.Fprintf(&b, "run %s, %s", r.RunID, r.Duration.Round(time.Second))
	return b.String()
}
