package httpx

import (
	"math/rand/v2"
	"net/http"
	"sync"
)

// Profile is one browser-like header set.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Referer        string
	Accept         string
}

// HeaderPool hands out a random Profile per outbound call.
type HeaderPool struct {
	profiles []Profile

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeaderPool returns a pool over profiles. A nil rng uses a random seed.
func NewHeaderPool(profiles []Profile, rng *rand.Rand) *HeaderPool {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &HeaderPool{profiles: profiles, rng: rng}
}

// Pick returns a fresh header set drawn from the pool.
func (p *HeaderPool) Pick() http.Header {
	p.mu.Lock()
	prof := p.profiles[p.rng.IntN(len(p.profiles))]
	p.mu.Unlock()

	h := http.Header{}
	h.Set("User-Agent", prof.UserAgent)
	if prof.AcceptLanguage != "" {
		h.Set("Accept-Language", prof.AcceptLanguage)
	}
	if prof.Referer != "" {
		h.Set("Referer", prof.Referer)
	}
	accept := prof.Accept
	if accept == "" {
		accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	}
	h.Set("Accept", accept)
	return h
}

// Len reports the pool size.
func (p *HeaderPool) Len() int { return len(p.profiles) }

func DefaultProfiles() []Profile {
	return []Profile{
		{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
			Referer:        "https://www.google.com/",
		},
		{
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9,ko;q=0.8",
			Referer:        "https://www.naver.com/",
		},
		{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			AcceptLanguage: "ko-KR,ko;q=0.8,en-US;q=0.5,en;q=0.3",
			Referer:        "https://search.naver.com/",
		},
		{
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			AcceptLanguage: "en-US,en;q=0.9",
			Referer:        "https://finance.yahoo.com/",
		},
		{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			AcceptLanguage: "ko,en-US;q=0.9,en;q=0.8",
			Referer:        "https://finance.naver.com/",
		},
	}
}
