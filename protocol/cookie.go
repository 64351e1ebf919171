package protocol

import "sync/atomic"

// serverOriginBit marks a cookie as server-originated. The source this
// protocol is modeled on ORs in 0x8000 (a 16-bit mask) despite Cookie
// being a 32-bit value, which only ever sets bit 15, not bit 31; fixed
// here per the redesign decision to use the 32-bit high bit consistently.
const serverOriginBit uint32 = 0x8000_0000

// cookieMask bounds the generator's increment to 15 bits so it can never
// collide with the origin bit regardless of wraparound.
const cookieMask uint32 = 0x7FFF

// CookieGenerator produces increasing, origin-tagged cookies for one
// endpoint (client or server) of a connection; the counter wraps to 0
// after 2^15 cookies.
type CookieGenerator struct {
	next   uint32
	server bool
}

// NewCookieGenerator returns a generator tagging its cookies as
// server-originated (server=true) or client-originated (server=false).
func NewCookieGenerator(server bool) *CookieGenerator {
	return &CookieGenerator{server: server}
}

// Next returns the next cookie: a 15-bit counter modulo 2^15, with the
// origin bit OR'd in.
func (g *CookieGenerator) Next() uint32 {
	n := atomic.AddUint32(&g.next, 1) & cookieMask
	if g.server {
		return n | serverOriginBit
	}
	return n
}

// IsServerOriginated reports whether cookie was generated by a server.
func IsServerOriginated(cookie uint32) bool {
	return cookie&serverOriginBit != 0
}
