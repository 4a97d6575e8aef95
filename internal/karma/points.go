package karma

import "github.com/tullo/trust/internal/models"

var pointTable = map[models.KarmaEventType]int{
	models.KarmaCreateGroup:        20,
	models.KarmaJoinGroup:          10,
	models.KarmaLeaderGainedMember: 15,
	models.KarmaCreateEvent:        15,
	models.KarmaUploadFile:         10,
	models.KarmaSendMessage:        5,
	models.KarmaGoodRating:         10,

	models.KarmaBanned:           -50,
	models.KarmaSuspended30d:     -30,
	models.KarmaSuspended7d:      -20,
	models.KarmaKickedFromGroup:  -20,
	models.KarmaWarning:          -15,
	models.KarmaSuspended3d:      -10,
	models.KarmaLeaderLostMember: -10,
	models.KarmaLeaveGroup:       -5,
	models.KarmaBadRating:        -5,
}

// Points returns the fixed delta for an event type
func Points(ev models.KarmaEventType) (int, bool) {
	p, ok := pointTable[ev]
	return p, ok
}

// RatingEvent maps a 1-5 star rating to its karma event. Three stars and
// out-of-range values carry no karma.
func RatingEvent(stars int) (models.KarmaEventType, bool) {
	switch {
	case stars >= 4 && stars <= 5:
		return models.KarmaGoodRating, true
	case stars >= 1 && stars <= 2:
		return models.KarmaBadRating, true
	}
	return "", false
}

// SuspensionEvent returns the karma event for a suspension tier
func SuspensionEvent(days int) (models.KarmaEventType, bool) {
	switch days {
	case 3:
		return models.KarmaSuspended3d, true
	case 7:
		return models.KarmaSuspended7d, true
	case 30:
		return models.KarmaSuspended30d, true
	}
	return "", false
}
