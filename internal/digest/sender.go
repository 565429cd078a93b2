package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UkralStul/content-alchemy/internal/domain"
)

// Sender доставляет сводку получателям.
type Sender interface {
	Send(ctx context.Context, recipients []string, d *Digest) error
}

// LogSender пишет сводку в лог вместо почты.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, recipients []string, d *Digest) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "daily digest",
		"date", d.Date,
		"recipients", recipients,
		"body", Render(d))
	return nil
}

// Render возвращает текст письма.
func Render(d *Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Content digest for %s\n", d.Date)

	section := func(title string, posts []*domain.Post) {
		if len(posts) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d)\n", title, len(posts))
		for _, p := range posts {
			fmt.Fprintf(&b, "  - [%s] %s", p.Platform, postLabel(p))
			if p.PublishDate != nil {
				fmt.Fprintf(&b, " @ %s %s", p.PublishDate.Format("2006-01-02"), p.PublishTime)
			}
			b.WriteByte('\n')
		}
	}
	section("Due today", d.DueToday)
	section("Overdue", d.Overdue)
	section("Ready to resurface", d.Evergreen)

	if len(d.StaleIdeas) > 0 {
		fmt.Fprintf(&b, "\nStale ideas (%d)\n", len(d.StaleIdeas))
		for _, i := range d.StaleIdeas {
			fmt.Fprintf(&b, "  - #%d %s (%s)\n", i.IdeaNumber, i.Title, i.Status)
		}
	}
	if d.Empty() {
		b.WriteString("\nNothing needs attention today.\n")
	}
	return b.String()
}

func postLabel(p *domain.Post) string {
	title := p.PostTitle
	if title == "" {
		title = "(untitled)"
	}
	if p.DirectEntrySequence != nil {
		return fmt.Sprintf("D-%d %s", *p.DirectEntrySequence, title)
	}
	return fmt.Sprintf("#%d %s", p.Sequence, title)
}
