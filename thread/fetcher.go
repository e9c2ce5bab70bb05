package thread

import (
	"context"
	"log"
	"os"
	"regexp"
	"sort"

	"reddit-reels/types"

	"github.com/vartanbeno/go-reddit/v2/reddit"
)

var postIDPattern = regexp.MustCompile(`comments/(\w+)`)

// redditPoster is the slice of the go-reddit client the fetcher needs
type redditPoster interface {
	Get(ctx context.Context, id string) (*reddit.PostAndComments, *reddit.Response, error)
}

// Fetcher pulls a discussion thread from Reddit. A fetch failure is a normal,
// handled case: the fetcher logs it and substitutes canned data so the
// pipeline never dead-ends on this stage.
type Fetcher struct {
	posts       redditPoster
	maxComments int
}

// New builds a Fetcher. With REDDIT_CLIENT_ID/REDDIT_CLIENT_SECRET set it
// authenticates; otherwise it uses the read-only client.
func New(maxComments int) *Fetcher {
	f := &Fetcher{maxComments: maxComments}

	clientID := os.Getenv("REDDIT_CLIENT_ID")
	clientSecret := os.Getenv("REDDIT_CLIENT_SECRET")

	var client *reddit.Client
	var err error
	if clientID != "" && clientSecret != "" {
		client, err = reddit.NewClient(reddit.Credentials{
			ID:       clientID,
			Secret:   clientSecret,
			Username: os.Getenv("REDDIT_USERNAME"),
			Password: os.Getenv("REDDIT_PASSWORD"),
		})
	} else {
		client, err = reddit.NewReadonlyClient()
	}
	if err != nil {
		log.Printf("[fetch] reddit client init failed: %v, canned data only", err)
		return f
	}
	f.posts = client.Post
	return f
}

// NewWithPoster injects a post source directly; used by tests
func NewWithPoster(p redditPoster, maxComments int) *Fetcher {
	return &Fetcher{posts: p, maxComments: maxComments}
}

// Fetch resolves a Reddit post URL into a RawThread. On any failure it
// returns the canned fallback thread instead of an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) *types.RawThread {
	log.Printf("[fetch] Fetching thread: %s", url)

	raw, err := f.fetch(ctx, url)
	if err != nil {
		log.Printf("[fetch] %v, using canned fallback thread", err)
		return FallbackThread()
	}
	log.Printf("[fetch] ✅ Thread %q (%d comments)", raw.Title, len(raw.Comments))
	return raw
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*types.RawThread, error) {
	postID := ExtractPostID(url)
	if postID == "" {
		return nil, &types.FetchError{URL: url, Err: errInvalidURL}
	}
	if f.posts == nil {
		return nil, &types.FetchError{URL: url, Err: errNoClient}
	}

	pc, _, err := f.posts.Get(ctx, postID)
	if err != nil {
		return nil, &types.FetchError{URL: url, Err: err}
	}
	if pc.Post == nil || pc.Post.Title == "" {
		return nil, &types.FetchError{URL: url, Err: errEmptyPost}
	}

	raw := &types.RawThread{
		Title:  pc.Post.Title,
		Author: pc.Post.Author,
		Body:   pc.Post.Body,
	}

	comments := append([]*reddit.Comment(nil), pc.Comments...)
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Score > comments[j].Score
	})
	for _, c := range comments {
		if c.Body == "" {
			continue
		}
		raw.Comments = append(raw.Comments, types.RawComment{
			Author:  c.Author,
			Content: c.Body,
			Upvotes: c.Score,
		})
		if f.maxComments > 0 && len(raw.Comments) >= f.maxComments {
			break
		}
	}
	return raw, nil
}

// ExtractPostID pulls the post ID out of a Reddit permalink, or returns ""
func ExtractPostID(url string) string {
	m := postIDPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// FallbackThread is the canned thread used when Reddit is unreachable
func FallbackThread() *types.RawThread {
	return &types.RawThread{
		Title:  "AITA for telling my roommate his cooking smells terrible?",
		Author: "throwaway_chef22",
		Body: "My roommate cooks fish every single night and the smell takes over " +
			"the whole apartment. Last week I finally told him it was unbearable " +
			"and he hasn't spoken to me since. I pay half the rent and I feel like " +
			"I should get a say in what the place smells like. AITA?",
		Comments: []types.RawComment{
			{
				Author:  "reddit_judge",
				Content: "NTA. Shared spaces mean shared standards. He can cook fish, you can open a window and say something.",
				Upvotes: 2431,
			},
			{
				Author:  "fish_defender",
				Content: "YTA, people have to eat. Buy an air purifier instead of policing his dinner.",
				Upvotes: 187,
			},
		},
	}
}
