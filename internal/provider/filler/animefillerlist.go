package filler

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mydehq/anitrack/internal/provider"
	"github.com/mydehq/anitrack/internal/types"
	"golang.org/x/net/html"
)

// AnimeFillerListSourceName is the registry name of the HTML show-page source
const AnimeFillerListSourceName = "animefillerlist"

const fillerListURL = "https://www.animefillerlist.com/shows"

// AnimeFillerListSource scrapes the episode table on AnimeFillerList show pages
// into the same bucketed shape the JSON dataset uses.
type AnimeFillerListSource struct {
	client
	baseURL string
}

// NewAnimeFillerListSource creates a new AnimeFillerList source
func NewAnimeFillerListSource(cfg types.UpstreamConfig, logger *log.Logger) *AnimeFillerListSource {
	base := cfg.BaseURL
	if base == "" {
		base = fillerListURL
	}
	return &AnimeFillerListSource{
		client:  newClient(cfg, logger),
		baseURL: strings.TrimRight(base, "/"),
	}
}

// Name returns the source identifier
func (s *AnimeFillerListSource) Name() string {
	return AnimeFillerListSourceName
}

// FetchDataset fetches and parses the show page for slug
func (s *AnimeFillerListSource) FetchDataset(ctx context.Context, slug string) (*types.RawDataset, bool) {
	body, err := s.get(ctx, "AnimeFillerList", s.baseURL+"/"+url.PathEscape(slug))
	if err != nil {
		s.logger.Debug("Show page unavailable", "slug", slug, "error", err)
		return nil, false
	}

	data, err := parseEpisodeTable(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("Malformed show page", "slug", slug, "error", err)
		return nil, false
	}
	if data == nil {
		s.logger.Debug("Show page has no episode table", "slug", slug)
		return nil, false
	}

	return data, true
}

// parseEpisodeTable walks <tr class="..."> rows and buckets them by class.
// It returns nil when the page holds no episode rows.
func parseEpisodeTable(r io.Reader) (*types.RawDataset, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	data := &types.RawDataset{}
	rows := 0
	var crawler func(*html.Node)

	crawler = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "tr" {
			if class, ok := rowClassification(getAttr(node, "class")); ok {
				if findChildByClass(node, "td", "Number") != nil {
					var title string
					if td := findChildByClass(node, "td", "Title"); td != nil {
						title = strings.TrimSpace(getText(td))
					}
					entry := types.RawEpisode{Title: title}
					switch class {
					case types.ClassCanon:
						data.Canon = append(data.Canon, entry)
					case types.ClassMixed:
						data.Mixed = append(data.Mixed, entry)
					case types.ClassFiller:
						data.Filler = append(data.Filler, entry)
					}
					rows++
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			crawler(c)
		}
	}

	crawler(doc)
	if rows == 0 {
		return nil, nil
	}
	data.Total = rows
	return data, nil
}

// rowClassification maps AnimeFillerList row classes (e.g. "manga_canon even",
// "mixed_canon/filler odd", "filler") onto a classification.
func rowClassification(class string) (types.Classification, bool) {
	class = strings.ToLower(class)
	switch {
	case strings.Contains(class, "mixed"):
		return types.ClassMixed, true
	case strings.Contains(class, "filler"):
		return types.ClassFiller, true
	case strings.Contains(class, "canon"):
		return types.ClassCanon, true
	}
	return "", false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findChildByClass(n *html.Node, tag, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag && strings.Contains(getAttr(c, "class"), class) {
			return c
		}
	}
	return nil
}

func getText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(getText(c))
	}
	return sb.String()
}

func init() {
	provider.RegisterSource(AnimeFillerListSourceName, func(cfg types.UpstreamConfig, logger *log.Logger) types.DatasetSource {
		return NewAnimeFillerListSource(cfg, logger)
	})
}
