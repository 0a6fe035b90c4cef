package caption

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // animated emoji are served as GIF
	_ "image/png"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp"
)

// EmojiResolver fetches the artwork of a custom emoji.
type EmojiResolver interface {
	Resolve(ctx context.Context, e Emoji) (image.Image, error)
}

// EmojiResolverFunc adapts a function to EmojiResolver.
type EmojiResolverFunc func(ctx context.Context, e Emoji) (image.Image, error)

func (f EmojiResolverFunc) Resolve(ctx context.Context, e Emoji) (image.Image, error) {
	return f(ctx, e)
}

// CDNResolver downloads emoji images from the chat platform's CDN.  It never
// retries; a failed emoji is drawn as a placeholder box.
type CDNResolver struct {
	client *resty.Client
	// Endpoint builds the download URL.  Defaults to the discordgo CDN endpoints.
	Endpoint func(Emoji) string
}

// NewCDNResolver returns a resolver whose requests give up after timeout.
func NewCDNResolver(timeout time.Duration) *CDNResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "image/png,image/gif,image/webp")
	return &CDNResolver{client: client, Endpoint: defaultEndpoint}
}

func defaultEndpoint(e Emoji) string {
	if e.Animated {
		return discordgo.EndpointEmojiAnimated(e.ID)
	}
	return discordgo.EndpointEmoji(e.ID)
}

func (c *CDNResolver) Resolve(ctx context.Context, e Emoji) (image.Image, error) {
	url := c.Endpoint(e)
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("emoji %s: %w", e.Name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("emoji %s: %s returned %d", e.Name, url, resp.StatusCode())
	}
	// image.Decode yields the first frame of an animated emoji.
	img, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("emoji %s: %w", e.Name, err)
	}
	return img, nil
}
