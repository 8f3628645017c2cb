package util

// MaskCardKey obscures a card key for logging purposes, showing only the first
// and last few characters.
func MaskCardKey(cardKey string) string {
	if len(cardKey) > 8 {
		return cardKey[:4] + "..." + cardKey[len(cardKey)-4:]
	} else if len(cardKey) > 4 {
		return cardKey[:2] + "..." + cardKey[len(cardKey)-2:]
	} else if len(cardKey) > 2 {
		return cardKey[:1] + "..." + cardKey[len(cardKey)-1:]
	}
	return cardKey
}
