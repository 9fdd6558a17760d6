// Package posts holds the typed post queries of the marketing sites.
package posts

import (
	"context"

	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/models"
)

// FeaturedKey is the fixed cache key of the featured post.
const FeaturedKey = "featured-post"

const cardProjection = `
{
  _id,
  _type,
  title,
  slug,
  postType,
  publishedAt,
  featured,
  featuredFrom,
  featuredTo,
  excerpt,
  heroImage,
  heroImageAlt,
  readingTimeOverride,
  "collaborators": collaborators[]->{
    _id,
    _type,
    name,
    slug,
    logo
  }
}
`

const fullProjection = `
{
  _id,
  _type,
  title,
  slug,
  postType,
  publishedAt,
  featured,
  featuredFrom,
  featuredTo,
  excerpt,
  heroImage,
  heroImageAlt,
  readingTimeOverride,
  body[]{
    ...,
    _type == "image" => {
      ...,
      "url": asset->url,
      "dimensions": asset->metadata.dimensions
    }
  },
  "author": author->{
    _id,
    _type,
    name,
    role,
    photo,
    email,
    phone
  },
  "collaborators": collaborators[]->{
    _id,
    _type,
    name,
    slug,
    logo,
    websiteUrl
  },
  eventStartDate,
  eventEndDate,
  eventLocation,
  seo{
    metaTitle,
    metaDescription,
    ogImage,
    noIndex,
    canonicalUrl
  }
}
`

const (
	bySlugQuery = `*[_type == "post" && slug.current == $slug][0]` + fullProjection

	allSlugsQuery = `*[_type == "post" && defined(slug.current)]{ "slug": slug.current }`

	listQuery = `*[
  _type == "post"
  && publishedAt <= now()
  && (!defined($postType) || $postType == "" || postType == $postType)
  && (!$featuredOnly || featured == true)
  && (!defined($searchQuery) || $searchQuery == "" || title match $searchQuery + "*" || excerpt match $searchQuery + "*")
] | order(publishedAt desc)[$offset...$end]` + cardProjection

	countQuery = `count(*[
  _type == "post"
  && publishedAt <= now()
  && (!defined($postType) || $postType == "" || postType == $postType)
  && (!defined($searchQuery) || $searchQuery == "" || title match $searchQuery + "*" || excerpt match $searchQuery + "*")
])`

	featuredQuery = `*[
  _type == "post"
  && publishedAt <= now()
  && featured == true
  && (!defined(featuredFrom) || featuredFrom <= now())
  && (!defined(featuredTo) || featuredTo >= now())
] | order(publishedAt desc)[0]` + cardProjection

	recentQuery = `*[
  _type == "post"
  && publishedAt <= now()
  && _id != $excludeId
] | order(publishedAt desc)[0...$limit]` + cardProjection

	byCollaboratorQuery = `*[
  _type == "post"
  && publishedAt <= now()
  && references(*[_type == "collaborator" && slug.current == $collaboratorSlug][0]._id)
] | order(publishedAt desc)[0...$limit]` + cardProjection
)

// SlugRef is one entry of AllSlugs.
type SlugRef struct {
	Slug string `json:"slug"`
}

// ListParams filters List and Count. Zero Limit means 10.
type ListParams struct {
	PostType     models.PostType
	Limit        int
	Offset       int
	FeaturedOnly bool
	Search       string
}

// Posts runs post queries through a fetcher.
type Posts struct {
	f *fetch.Fetcher
}

// New creates Posts on top of f.
func New(f *fetch.Fetcher) *Posts {
	return &Posts{f: f}
}

// BySlug fetches one post with its full body.
func (p *Posts) BySlug(ctx context.Context, s *fetch.Scope, slug string) *fetch.Data[*models.Post] {
	return fetch.Fetch[*models.Post](ctx, p.f, s, bySlugQuery, map[string]any{"slug": slug}, fetch.Options{})
}

// AllSlugs lists the slug of every post.
func (p *Posts) AllSlugs(ctx context.Context, s *fetch.Scope) *fetch.Data[[]SlugRef] {
	return fetch.Fetch[[]SlugRef](ctx, p.f, s, allSlugsQuery, nil, fetch.Options{})
}

// List fetches a page of published posts, newest first.
func (p *Posts) List(ctx context.Context, s *fetch.Scope, lp ListParams) *fetch.Data[[]models.Post] {
	limit := lp.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := max(lp.Offset, 0)
	params := map[string]any{
		"postType":     postTypeParam(lp.PostType),
		"featuredOnly": lp.FeaturedOnly,
		"searchQuery":  lp.Search,
		"offset":       offset,
		"end":          offset + limit,
	}
	return fetch.Fetch[[]models.Post](ctx, p.f, s, listQuery, params, fetch.Options{})
}

// Count returns how many published posts match postType and search.
func (p *Posts) Count(ctx context.Context, s *fetch.Scope, postType models.PostType, search string) *fetch.Data[int] {
	params := map[string]any{
		"postType":    postTypeParam(postType),
		"searchQuery": search,
	}
	return fetch.Fetch[int](ctx, p.f, s, countQuery, params, fetch.Options{})
}

// Featured fetches the most recent post currently marked as featured. It
// always asks the API on the client so an expired feature is not served from
// a snapshot.
func (p *Posts) Featured(ctx context.Context, s *fetch.Scope) *fetch.Data[*models.Post] {
	return fetch.Fetch[*models.Post](ctx, p.f, s, featuredQuery, nil, fetch.Options{Key: FeaturedKey, Fresh: true})
}

// RecentExcluding fetches the latest posts other than excludeID. Zero limit
// means 3.
func (p *Posts) RecentExcluding(ctx context.Context, s *fetch.Scope, excludeID string, limit int) *fetch.Data[[]models.Post] {
	if limit <= 0 {
		limit = 3
	}
	params := map[string]any{"excludeId": excludeID, "limit": limit}
	return fetch.Fetch[[]models.Post](ctx, p.f, s, recentQuery, params, fetch.Options{})
}

// ByCollaborator fetches posts referencing the collaborator with slug. Zero
// limit means 20.
func (p *Posts) ByCollaborator(ctx context.Context, s *fetch.Scope, slug string, limit int) *fetch.Data[[]models.Post] {
	if limit <= 0 {
		limit = 20
	}
	params := map[string]any{"collaboratorSlug": slug, "limit": limit}
	return fetch.Fetch[[]models.Post](ctx, p.f, s, byCollaboratorQuery, params, fetch.Options{})
}

// Types returns the post types offered by filter dropdowns.
func Types() []models.PostTypeOption {
	return []models.PostTypeOption{
		{Value: models.PostNews, Label: "News"},
		{Value: models.PostEvent, Label: "Events"},
		{Value: models.PostProductUpdate, Label: "Product Updates"},
		{Value: models.PostPressRelease, Label: "Press Releases"},
	}
}

// ParseType returns the post type named s, or false.
func ParseType(s string) (models.PostType, bool) {
	for _, o := range Types() {
		if string(o.Value) == s {
			return o.Value, true
		}
	}
	return "", false
}

func postTypeParam(t models.PostType) any {
	if t == "" {
		return nil
	}
	return string(t)
}
