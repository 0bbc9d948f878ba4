// internal/form/notify.go
//
// Formpipe – Forms subsystem: submission notifications.
//
// Context
//   When a form has notifications enabled and at least one recipient, the
//   stored Record is rendered once as an HTML listing (one block per field in
//   form order, then request metadata) and mailed to each recipient in turn.
//   Hooks may adjust the subject, body, and headers per recipient.
//
//   Delivery is best effort.  A failed send is logged and counted; it never
//   changes the Outcome because the submission is already stored.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/yanizio/formpipe/internal/metrics"
)

const hiddenFieldLabel = "*Hidden Field*"

var notifyTmpl = template.Must(template.New("notify").Parse(
	`{{range .Entries}}<div>{{if .Label}}<b>{{.Label}} ({{.Slug}}):</b>{{else}}<b>{{.Slug}}:</b>{{end}}</div>
<div style="margin-bottom: 10px;">{{if .Link}}<a href="{{.Link.URL}}">{{.Link.Text}}</a>{{else if .Lines}}{{range $i, $l := .Lines}}{{if $i}}<br>{{end}}{{$l}}{{end}}{{else}}<span>-</span>{{end}}</div>
{{end}}{{if .Page}}<div>Form submitted from: {{.Page}}</div>
{{end}}<div>Form submitter IP: {{.RemoteAddr}}</div>
{{if .Country}}<div>Form submitter location: {{.Country}}</div>
{{end}}`))

type notifyLink struct{ URL, Text string }

type notifyEntry struct {
	Label string
	Slug  string
	Lines []string
	Link  *notifyLink
}

type notifyView struct {
	Entries    []notifyEntry
	Page       string
	RemoteAddr string
	Country    string
}

// RenderNotification renders the HTML body for a stored Record.
func (p *Processor) RenderNotification(fm *Form, rec Record, sub Submission) (string, error) {
	view := notifyView{
		Page:       sub.FormPage,
		RemoteAddr: sub.RemoteAddr,
		Country:    sub.Country,
	}

	for i := range fm.Fields {
		f := &fm.Fields[i]
		v, ok := rec[f.Slug]
		if !ok {
			continue
		}

		e := notifyEntry{Label: f.Label, Slug: f.Slug}
		if f.Type == TypeHidden {
			e.Label = hiddenFieldLabel
		}
		if ref, isFile := v.FileRef(); isFile && f.Type == TypeFile {
			e.Link = &notifyLink{URL: ref.URL, Text: ref.FileName}
		} else {
			e.Lines = p.prettyLines(f, v)
		}
		view.Entries = append(view.Entries, e)
	}

	var buf bytes.Buffer
	if err := notifyTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render notification for form %d: %w", fm.ID, err)
	}
	return buf.String(), nil
}

// notify mails the rendered Record to every configured recipient.
func (p *Processor) notify(ctx context.Context, fm *Form, rec Record, sub Submission) {
	if !fm.Notify.Enabled || p.mailer == nil {
		return
	}
	recipients := fm.Notify.Recipients()
	if len(recipients) == 0 {
		return
	}

	body, err := p.RenderNotification(fm, rec, sub)
	if err != nil {
		p.log.Errorw("notification render failed", "form", fm.ID, "error", err)
		metrics.NotificationsTotal.WithLabelValues("render_error").Inc()
		return
	}
	baseHeaders := p.notifyHeaders(fm, rec)

	for _, to := range recipients {
		subject := fmt.Sprintf("%s: Form Submission to \"%s\"", p.opts.SiteName, fm.Title)
		msgBody := body
		headers := cloneHeaders(baseHeaders)

		if p.hooks.EmailSubject != nil {
			subject = p.hooks.EmailSubject(subject, fm, to, sub.FormPage)
		}
		if p.hooks.EmailBody != nil {
			msgBody = p.hooks.EmailBody(msgBody, fm, to, sub.FormPage)
		}
		if p.hooks.EmailHeaders != nil {
			headers = p.hooks.EmailHeaders(headers, fm, to, sub.FormPage)
		}

		err := p.mailer.Send(ctx, Email{To: to, Subject: subject, HTML: msgBody, Headers: headers})
		if err != nil {
			p.log.Warnw("notification send failed", "form", fm.ID, "to", to, "error", err)
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	}
}

// notifyHeaders builds the MIME headers plus From/Reply-To for the custom
// and field sender modes.
func (p *Processor) notifyHeaders(fm *Form, rec Record) map[string]string {
	h := map[string]string{
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=utf-8",
	}

	var from string
	switch fm.Notify.FromType {
	case FromCustom:
		from = cleanEmail(fm.Notify.FromAddress)
	case FromField:
		if v, ok := rec[fm.Notify.FromField]; ok && !v.IsEmpty() {
			switch {
			case v.Kind() == KindComposite && v.Part("confirm") != "":
				from = cleanEmail(v.Part("confirm"))
			case v.Kind() == KindComposite:
				from = cleanEmail(v.Part("email"))
			default:
				from = cleanEmail(v.String())
			}
		}
	}
	if from != "" {
		h["From"] = from
		h["Reply-To"] = from
	}
	return h
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
