package tokencache

// Kind selects what Invalidate removes.
type Kind int

const (
	// InvalidateAll drops every entry.
	InvalidateAll Kind = iota
	// InvalidateLogout drops one hash, or every entry of a user when no hash
	// is given.
	InvalidateLogout
	// InvalidateRevoke behaves like InvalidateLogout.
	InvalidateRevoke
	// InvalidateRefresh drops the superseded hash of a rotation.
	InvalidateRefresh
)

func (k Kind) String() string {
	switch k {
	case InvalidateAll:
		return "all"
	case InvalidateLogout:
		return "logout"
	case InvalidateRevoke:
		return "revoke"
	case InvalidateRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Target names the entries to invalidate. Hash takes precedence over UserID.
type Target struct {
	UserID string
	Hash   string
}

// Invalidate removes entries according to kind and returns how many were
// dropped.
func (c *Cache) Invalidate(kind Kind, target Target) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case InvalidateAll:
		n := c.lru.Len()
		for el := c.lru.Front(); el != nil; {
			next := el.Next()
			c.removeElement(el, ReasonInvalidate)
			el = next
		}
		return n

	case InvalidateLogout, InvalidateRevoke:
		if target.Hash != "" {
			return c.removeHash(target.Hash)
		}
		if target.UserID != "" {
			return c.removeUser(target.UserID)
		}

	case InvalidateRefresh:
		if target.Hash != "" {
			return c.removeHash(target.Hash)
		}
	}

	return 0
}

func (c *Cache) removeHash(hash string) int {
	el, ok := c.entries[hash]
	if !ok {
		return 0
	}
	c.removeElement(el, ReasonInvalidate)
	return 1
}

func (c *Cache) removeUser(userID string) int {
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*Entry).Token.UserID == userID {
			c.removeElement(el, ReasonInvalidate)
			removed++
		}
		el = next
	}
	return removed
}
