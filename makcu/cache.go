package makcu

// commandCache holds the precomputed command strings for the hot paths:
// every (button, press/release) pair and every (lock target, set/clear/query)
// triple. Built once per Device so no per-click formatting happens.
type commandCache struct {
	press   [buttonCount]string
	release [buttonCount]string
	lockSet [lockTargetCount]string
	lockClr [lockTargetCount]string
	lockQry [lockTargetCount]string
}

func buildCommandCache() commandCache {
	var c commandCache
	for i, name := range buttonCommandNames {
		c.press[i] = "km." + name + "(1)"
		c.release[i] = "km." + name + "(0)"
	}
	for i, suffix := range lockSuffixes {
		c.lockSet[i] = "km.lock_" + suffix + "(1)"
		c.lockClr[i] = "km.lock_" + suffix + "(0)"
		c.lockQry[i] = "km.lock_" + suffix + "()"
	}
	return c
}

// button returns the cached press or release string for b.
func (c *commandCache) button(b MouseButton, press bool) (string, bool) {
	if int(b) >= buttonCount {
		return "", false
	}
	if press {
		return c.press[b], true
	}
	return c.release[b], true
}

// lock returns the cached set or clear string for t.
func (c *commandCache) lock(t LockTarget, set bool) (string, bool) {
	if int(t) >= lockTargetCount {
		return "", false
	}
	if set {
		return c.lockSet[t], true
	}
	return c.lockClr[t], true
}

// lockQuery returns the cached query string for t.
func (c *commandCache) lockQuery(t LockTarget) (string, bool) {
	if int(t) >= lockTargetCount {
		return "", false
	}
	return c.lockQry[t], true
}
