package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SettingsID - первичный ключ единственного документа глобальных настроек.
const SettingsID = "global"

// DefaultPublishTime подставляется, когда пост ставят в календарь без времени.
const DefaultPublishTime = "09:00"

// IdeaStatus - степень готовности идеи.
type IdeaStatus string

const (
	IdeaIncubating IdeaStatus = "incubating"
	IdeaReady      IdeaStatus = "ready"
	IdeaCompleted  IdeaStatus = "completed"
)

// Valid сообщает, известен ли статус.
func (s IdeaStatus) Valid() bool {
	switch s {
	case IdeaIncubating, IdeaReady, IdeaCompleted:
		return true
	}
	return false
}

// PostStatus - состояние жизненного цикла поста.
// Архив - отдельное состояние, а не флаг поверх published.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

// Platform - канал публикации.
type Platform string

const (
	PlatformLinkedIn   Platform = "linkedin"
	PlatformInstagram  Platform = "instagram"
	PlatformTwitter    Platform = "twitter"
	PlatformYouTube    Platform = "youtube"
	PlatformTikTok     Platform = "tiktok"
	PlatformNewsletter Platform = "newsletter"
	PlatformBlog       Platform = "blog"
)

// Platforms перечисляет поддерживаемые каналы в порядке отображения.
var Platforms = []Platform{
	PlatformLinkedIn, PlatformInstagram, PlatformTwitter, PlatformYouTube,
	PlatformTikTok, PlatformNewsletter, PlatformBlog,
}

// Valid сообщает, поддерживается ли канал.
func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ResourceType - тип материала, прикрепленного к идее.
type ResourceType string

const (
	ResourceImage    ResourceType = "image"
	ResourceVideo    ResourceType = "video"
	ResourceDocument ResourceType = "document"
	ResourceLink     ResourceType = "link"
)

// Resource - материал, прикрепленный к идее.
type Resource struct {
	Type  ResourceType `json:"type"`
	Label string       `json:"label"`
	URI   string       `json:"uri"`
}

// Idea представляет идею, из которой рождаются посты.
type Idea struct {
	ID          string                        `json:"id" gorm:"type:varchar(36);primaryKey"`
	IdeaNumber  int64                         `json:"ideaNumber" gorm:"not null;uniqueIndex"`
	Title       string                        `json:"title" gorm:"type:varchar(255);not null"`
	Concept     string                        `json:"concept" gorm:"type:text"`
	Status      IdeaStatus                    `json:"status" gorm:"type:varchar(20);not null;index"`
	Pillar      string                        `json:"pillar" gorm:"type:varchar(100)"`
	AudioMemo   string                        `json:"audioMemo,omitempty" gorm:"type:text"`
	Resources   datatypes.JSONSlice[Resource] `json:"resources"`
	IsFavorite  bool                          `json:"isFavorite" gorm:"not null;default:false"`
	CreatedDate time.Time                     `json:"createdDate" gorm:"not null"`
}

// Media - непрозрачное описание вложения.
type Media struct {
	URI  string `json:"uri,omitempty"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// Post представляет пост для конкретной платформы.
type Post struct {
	ID                  string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	IdeaID              *string    `json:"ideaId,omitempty" gorm:"type:varchar(36);index"`
	DirectEntrySequence *int64     `json:"directEntrySequence,omitempty" gorm:"uniqueIndex"`
	Sequence            int        `json:"sequence" gorm:"not null;default:0"`
	Platform            Platform   `json:"platform" gorm:"type:varchar(30);not null"`
	PostType            string     `json:"postType,omitempty" gorm:"type:varchar(50)"`
	Status              PostStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	PublishDate         *time.Time `json:"publishDate,omitempty" gorm:"index"`
	PublishTime         string     `json:"publishTime,omitempty" gorm:"type:varchar(5)"`
	IsLocked            bool       `json:"isLocked" gorm:"not null;default:false"`
	IsEvergreen         bool       `json:"isEvergreen" gorm:"not null;default:false;index"`
	RepurposeDate       *time.Time `json:"repurposeDate,omitempty" gorm:"index"`
	ActionNotes         string     `json:"actionNotes,omitempty" gorm:"type:text"`
	DefinitivePillar    string     `json:"definitivePillar,omitempty" gorm:"type:varchar(100)"`
	PostTitle           string     `json:"postTitle" gorm:"type:varchar(255)"`
	Content             string     `json:"content" gorm:"type:text"`
	MediaURI            string     `json:"mediaUri,omitempty" gorm:"type:text"`
	MediaType           string     `json:"mediaType,omitempty" gorm:"type:varchar(100)"`
	MediaName           string     `json:"mediaName,omitempty" gorm:"type:varchar(255)"`
	CreatedAt           time.Time  `json:"createdAt" gorm:"not null"`
	UpdatedAt           time.Time  `json:"updatedAt" gorm:"not null"`
}

// Media возвращает вложение поста или nil.
func (p *Post) Media() *Media {
	if p.MediaURI == "" {
		return nil
	}
	return &Media{URI: p.MediaURI, Type: p.MediaType, Name: p.MediaName}
}

// SetMedia заменяет вложение; nil очищает его.
func (p *Post) SetMedia(m *Media) {
	if m == nil {
		p.MediaURI, p.MediaType, p.MediaName = "", "", ""
		return
	}
	p.MediaURI, p.MediaType, p.MediaName = m.URI, m.Type, m.Name
}

// IsDirectEntry сообщает, создан ли пост без идеи (прямой ввод).
func (p *Post) IsDirectEntry() bool {
	return p.IdeaID == nil || *p.IdeaID == ""
}

// CountsAsPublished сообщает, учитывается ли пост как опубликованный.
func (p *Post) CountsAsPublished() bool {
	return p.Status == PostPublished || p.Status == PostArchived
}

// EligibleForResurfacing сообщает, истек ли таймер evergreen-поста к моменту now.
func (p *Post) EligibleForResurfacing(now time.Time) bool {
	return p.IsEvergreen &&
		p.RepurposeDate != nil &&
		!p.RepurposeDate.After(now) &&
		p.Status != PostDraft
}

// Clone возвращает глубокую копию поста.
func (p *Post) Clone() *Post {
	cp := *p
	if p.IdeaID != nil {
		v := *p.IdeaID
		cp.IdeaID = &v
	}
	if p.DirectEntrySequence != nil {
		v := *p.DirectEntrySequence
		cp.DirectEntrySequence = &v
	}
	if p.PublishDate != nil {
		v := *p.PublishDate
		cp.PublishDate = &v
	}
	if p.RepurposeDate != nil {
		v := *p.RepurposeDate
		cp.RepurposeDate = &v
	}
	return &cp
}

// Clone возвращает глубокую копию идеи.
func (i *Idea) Clone() *Idea {
	cp := *i
	cp.Resources = append(datatypes.JSONSlice[Resource](nil), i.Resources...)
	return &cp
}

// Pillar - стратегическая категория контента.
type Pillar struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

// LaneVisibility управляет видимостью дорожки платформы в календаре.
type LaneVisibility struct {
	Platform Platform `json:"platform"`
	Visible  bool     `json:"visible"`
}

// Settings - глобальный документ со счетчиками и настройками.
type Settings struct {
	ID                     string                              `json:"id" gorm:"type:varchar(36);primaryKey"`
	DirectEntryPostCounter int64                               `json:"directEntryPostCounter" gorm:"not null;default:0"`
	IdeaCounter            int64                               `json:"ideaCounter" gorm:"not null;default:100"`
	RepurposeCycle         int                                 `json:"repurposeCycle" gorm:"not null;default:365"`
	RepurposeSnoozeDays    int                                 `json:"repurposeSnoozeDays" gorm:"not null;default:90"`
	Pillars                datatypes.JSONSlice[Pillar]         `json:"pillars"`
	Lanes                  datatypes.JSONSlice[LaneVisibility] `json:"lanes"`
	StaleIdeaDays          int                                 `json:"staleIdeaDays" gorm:"not null;default:30"`
	DigestRecipients       datatypes.JSONSlice[string]         `json:"digestRecipients"`
	LastDigestDate         string                              `json:"lastDigestDate,omitempty" gorm:"type:varchar(10)"`
}

// Counter - имя счетчика в документе настроек.
type Counter string

const (
	CounterDirectEntry Counter = "direct_entry_post_counter"
	CounterIdea        Counter = "idea_counter"
)

// MinIdeaCounter - нижняя граница счетчика идей, первая идея получает 101.
const MinIdeaCounter = 100

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() *Settings {
	lanes := make(datatypes.JSONSlice[LaneVisibility], 0, len(Platforms))
	for _, p := range Platforms {
		lanes = append(lanes, LaneVisibility{Platform: p, Visible: true})
	}
	return &Settings{
		ID:                  SettingsID,
		IdeaCounter:         MinIdeaCounter,
		RepurposeCycle:      365,
		RepurposeSnoozeDays: 90,
		Lanes:               lanes,
		StaleIdeaDays:       30,
	}
}

// CounterValue возвращает последнее выданное значение счетчика.
func (s *Settings) CounterValue(c Counter) int64 {
	if c == CounterIdea {
		return s.IdeaCounter
	}
	return s.DirectEntryPostCounter
}

// Clone возвращает глубокую копию настроек.
func (s *Settings) Clone() *Settings {
	cp := *s
	cp.Pillars = append(datatypes.JSONSlice[Pillar](nil), s.Pillars...)
	cp.Lanes = append(datatypes.JSONSlice[LaneVisibility](nil), s.Lanes...)
	cp.DigestRecipients = append(datatypes.JSONSlice[string](nil), s.DigestRecipients...)
	return &cp
}

// AllocationSet - именованный стратегический режим. Активен ровно один.
type AllocationSet struct {
	ID       string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name     string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	IsActive bool   `json:"isActive" gorm:"not null;default:false"`
}

// PillarTarget - целевая доля категории внутри набора.
type PillarTarget struct {
	AllocationSetID  string  `json:"allocationSetId" gorm:"type:varchar(36);primaryKey"`
	PillarID         string  `json:"pillarId" gorm:"type:varchar(100);primaryKey"`
	TargetPercentage float64 `json:"targetPercentage" gorm:"not null;default:0"`
}

// Key возвращает составной ключ "<set>_<pillar>".
func (t PillarTarget) Key() string {
	return TargetKey(t.AllocationSetID, t.PillarID)
}

// TargetKey строит составной ключ цели.
func TargetKey(setID, pillarID string) string {
	return setID + "_" + pillarID
}

// Границы целевого процента.
const (
	MinTargetPercentage = 0
	MaxTargetPercentage = 150
)

// ClampTarget ограничивает процент диапазоном [0, 150].
func ClampTarget(pct float64) float64 {
	if pct < MinTargetPercentage {
		return MinTargetPercentage
	}
	if pct > MaxTargetPercentage {
		return MaxTargetPercentage
	}
	return pct
}

// PillarID приводит ссылку на категорию к id. Старые данные хранят имя
// категории вместо id; неизвестное значение возвращается как есть.
func (s *Settings) PillarID(ref string) string {
	for _, p := range s.Pillars {
		if p.ID == ref {
			return ref
		}
	}
	for _, p := range s.Pillars {
		if p.Name == ref {
			return p.ID
		}
	}
	return ref
}
