// Package notifytest 提供记录型 Dispatcher，供测试断言通知。
package notifytest

import (
	"context"
	"sync"
)

type InApp struct {
	RecipientID int64
	Title       string
	Body        string
	EventType   string
	EntityID    int64
}

type Email struct {
	To       string
	Subject  string
	HTMLBody string
}

// Recorder 记录所有投递。FailInApp / FailEmail 非空时对应渠道返回该错误
type Recorder struct {
	mu        sync.Mutex
	InApps    []InApp
	Emails    []Email
	FailInApp error
	FailEmail error
}

func (r *Recorder) CreateInAppNotification(_ context.Context, recipientID int64, title, body, eventType string, entityID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInApp != nil {
		return r.FailInApp
	}
	r.InApps = append(r.InApps, InApp{
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		EventType:   eventType,
		EntityID:    entityID,
	})
	return nil
}

func (r *Recorder) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEmail != nil {
		return r.FailEmail
	}
	r.Emails = append(r.Emails, Email{To: to, Subject: subject, HTMLBody: htmlBody})
	return nil
}

// Titles 返回发给 recipientID 的站内通知标题
func (r *Recorder) Titles(recipientID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.InApps {
		if n.RecipientID == recipientID {
			out = append(out, n.Title)
		}
	}
	return out
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.InApps)
}
