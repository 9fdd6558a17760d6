package models

import "time"

// PostType classifies a post.
type PostType string

const (
	PostNews          PostType = "news"
	PostEvent         PostType = "event"
	PostProductUpdate PostType = "product_update"
	PostPressRelease  PostType = "press_release"
)

// Slug is the CMS slug object.
type Slug struct {
	Current string `json:"current"`
}

// ImageRef is a CMS image reference.
type ImageRef struct {
	Type  string `json:"_type,omitempty"`
	Asset struct {
		Ref string `json:"_ref"`
	} `json:"asset"`
}

// Collaborator is a partner organisation referenced by posts.
type Collaborator struct {
	ID         string    `json:"_id"`
	Type       string    `json:"_type"`
	Name       string    `json:"name"`
	Slug       Slug      `json:"slug"`
	Logo       *ImageRef `json:"logo,omitempty"`
	WebsiteURL string    `json:"websiteUrl,omitempty"`
}

// Author is the person credited on a post.
type Author struct {
	ID    string    `json:"_id"`
	Type  string    `json:"_type"`
	Name  string    `json:"name"`
	Role  string    `json:"role,omitempty"`
	Photo *ImageRef `json:"photo,omitempty"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

// PostSEO overrides page metadata for a post.
type PostSEO struct {
	MetaTitle       string    `json:"metaTitle,omitempty"`
	MetaDescription string    `json:"metaDescription,omitempty"`
	OGImage         *ImageRef `json:"ogImage,omitempty"`
	NoIndex         bool      `json:"noIndex,omitempty"`
	CanonicalURL    string    `json:"canonicalUrl,omitempty"`
}

// Post is a news item, event, product update or press release.
type Post struct {
	ID                  string         `json:"_id"`
	Type                string         `json:"_type"`
	Title               string         `json:"title"`
	Slug                Slug           `json:"slug"`
	PostType            PostType       `json:"postType"`
	PublishedAt         time.Time      `json:"publishedAt"`
	Featured            bool           `json:"featured"`
	FeaturedFrom        *time.Time     `json:"featuredFrom,omitempty"`
	FeaturedTo          *time.Time     `json:"featuredTo,omitempty"`
	Excerpt             string         `json:"excerpt,omitempty"`
	HeroImage           *ImageRef      `json:"heroImage,omitempty"`
	HeroImageAlt        string         `json:"heroImageAlt,omitempty"`
	ReadingTimeOverride *int           `json:"readingTimeOverride,omitempty"`
	Collaborators       []Collaborator `json:"collaborators,omitempty"`

	// Full view only.
	Body           []map[string]any `json:"body,omitempty"`
	Author         *Author          `json:"author,omitempty"`
	EventStartDate *time.Time       `json:"eventStartDate,omitempty"`
	EventEndDate   *time.Time       `json:"eventEndDate,omitempty"`
	EventLocation  string           `json:"eventLocation,omitempty"`
	SEO            *PostSEO         `json:"seo,omitempty"`
}

// PostTypeOption is a labelled post type for filter UIs.
type PostTypeOption struct {
	Value PostType `json:"value"`
	Label string   `json:"label"`
}
