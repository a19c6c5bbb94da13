// Package images pulls embedded <img> references out of card markup, replaces
// them with [IMAGE_n] placeholders and puts resolved images back in.
package images

import (
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Default asset location for relative image filenames.
const (
	DefaultBaseURL   = "https://pub-a4bec7073d99465f99043c842be6318c.r2.dev"
	DefaultSubfolder = "anki"
)

// Image classes used when markup is rebuilt.
const (
	ClassFull    = "inline-image"
	ClassSmall   = "inline-image-small"
	ClassMissing = "image-missing"
)

var (
	imgTagRE      = regexp.MustCompile(`(?is)<img\b[^>]*>`)
	placeholderRE = regexp.MustCompile(`\[IMAGE_(\d+)\]`)
	whitespaceRE  = regexp.MustCompile(`\s+`)
	absoluteRE    = regexp.MustCompile(`(?i)^(?:[a-z][a-z0-9+.\-]*:|//)`)
	breakRE       = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li|h[1-6])>`)
)

// ExtractedImage is one image pulled out of markup. Its position in the cleaned
// text is the placeholder token [IMAGE_n], n being its zero-based order.
type ExtractedImage struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// Resolver turns image references into absolute URLs.
type Resolver struct {
	BaseURL   string
	Subfolder string
}

// DefaultResolver resolves against the default asset location.
func DefaultResolver() Resolver {
	return Resolver{BaseURL: DefaultBaseURL, Subfolder: DefaultSubfolder}
}

// Resolve returns src unchanged when it is already absolute. Otherwise it is treated
// as a filename: whitespace runs become underscores, the result is path-escaped and
// prefixed with the base URL and subfolder.
func (r Resolver) Resolve(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || absoluteRE.MatchString(src) {
		return src
	}
	name := whitespaceRE.ReplaceAllString(src, "_")
	name = strings.TrimLeft(name, "/")

	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	parts := []string{strings.TrimRight(r.BaseURL, "/")}
	if sub := strings.Trim(r.Subfolder, "/"); sub != "" {
		parts = append(parts, sub)
	}
	parts = append(parts, strings.Join(segments, "/"))
	return strings.Join(parts, "/")
}

// Extract scans text for <img> tags in document order. Every tag with a src is
// removed and replaced by [IMAGE_n]; tags without a src are left as they are.
func (r Resolver) Extract(text string) ([]ExtractedImage, string) {
	var images []ExtractedImage
	clean := imgTagRE.ReplaceAllStringFunc(text, func(tag string) string {
		attrs := tagAttrs(tag)
		src := attrs["src"]
		if strings.TrimSpace(src) == "" {
			return tag
		}
		alt := attrs["alt"]
		images = append(images, ExtractedImage{
			Src: r.Resolve(src),
			Alt: alt,
		})
		return Placeholder(len(images) - 1)
	})
	return images, clean
}

// URLs returns the resolved URLs of every image in text, in order.
func (r Resolver) URLs(text string) []string {
	images, _ := r.Extract(text)
	if len(images) == 0 {
		return nil
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.Src)
	}
	return urls
}

// Inline extracts the images of text and puts them back as rendered <img> tags.
func (r Resolver) Inline(text string) string {
	images, clean := r.Extract(text)
	return Render(clean, images)
}

// Placeholder returns the token standing in for the n-th image.
func Placeholder(n int) string {
	return "[IMAGE_" + strconv.Itoa(n) + "]"
}

// ReplacePlaceholders calls render for each [IMAGE_n] token in text and substitutes
// its result.
func ReplacePlaceholders(text string, render func(index int) string) string {
	return placeholderRE.ReplaceAllStringFunc(text, func(token string) string {
		m := placeholderRE.FindStringSubmatch(token)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return token
		}
		return render(n)
	})
}

// StripPlaceholders removes any [IMAGE_n] tokens left in text.
func StripPlaceholders(text string) string {
	return strings.TrimSpace(placeholderRE.ReplaceAllString(text, ""))
}

// Render replaces placeholders in clean with inline images. A placeholder with no
// matching image becomes a visible "[Image N not available]" marker.
func Render(clean string, images []ExtractedImage) string {
	return ReplacePlaceholders(clean, func(index int) string {
		if index < 0 || index >= len(images) || images[index].Src == "" {
			return fmt.Sprintf(`<span class="%s">[Image %d not available]</span>`, ClassMissing, index+1)
		}
		return Tag(images[index])
	})
}

// Tag renders one image.
func Tag(img ExtractedImage) string {
	alt := img.Alt
	if alt == "" {
		alt = "Image"
	}
	return fmt.Sprintf(`<img src="%s" alt="%s" class="%s" loading="lazy" />`,
		template.HTMLEscapeString(img.Src), template.HTMLEscapeString(alt), SizeClass(img))
}

// SizeClass classifies arrows and icons as small inline images.
func SizeClass(img ExtractedImage) string {
	alt := strings.ToLower(img.Alt)
	src := strings.ToLower(img.Src)
	if strings.Contains(alt, "arrow") || strings.Contains(src, "arrow") || strings.Contains(alt, "icon") {
		return ClassSmall
	}
	return ClassFull
}

// tagAttrs reads the attributes of a single start tag, keys lowercased and
// values unescaped. The first occurrence of a repeated attribute wins.
func tagAttrs(tag string) map[string]string {
	z := html.NewTokenizer(strings.NewReader(tag))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
	default:
		return nil
	}
	attrs := make(map[string]string)
	for more := true; more; {
		var key, val []byte
		key, val, more = z.TagAttr()
		if len(key) == 0 {
			continue
		}
		if _, seen := attrs[string(key)]; !seen {
			attrs[string(key)] = string(val)
		}
	}
	return attrs
}
