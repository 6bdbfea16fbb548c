package safety

// AssessTime maps an hour of day onto a risk band.
func AssessTime(hour int) TimeAssessment {
	switch {
	case hour >= 22 || hour < 6:
		return TimeAssessment{Hour: hour, Period: "late_night", Risk: 2.5}
	case hour >= 18:
		return TimeAssessment{Hour: hour, Period: "evening", Risk: 1.5}
	case (hour >= 6 && hour < 9) || hour == 17:
		return TimeAssessment{Hour: hour, Period: "rush_hour", Risk: 1.2}
	default:
		return TimeAssessment{Hour: hour, Period: "daytime", Risk: 0.5}
	}
}
