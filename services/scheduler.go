package services

import (
	"time"

	"github.com/studypath/api/model"
)

// ScheduleTopics assigns a calendar day to every topic using greedy
// bin-packing against the daily time budget, then stamps dayIndex.
//
// Topics are packed in the given order, never re-sorted and never split: when
// a topic does not fit in the remaining budget of the current day it moves to
// the next day, even when it alone exceeds the daily limit (it then becomes
// that day's only occupant, over budget). Day boundaries are UTC so client
// timezones cannot shift the plan.
//
// Pure: no clock access, deterministic for identical input and startDate.
func ScheduleTopics(topics []model.Topic, startDate time.Time, dailyLimitMinutes int) []model.Topic {
	if dailyLimitMinutes <= 0 {
		dailyLimitMinutes = 60
	}

	currentDate := startDate.UTC().Truncate(24 * time.Hour)
	currentDayMinutes := 0

	for i := range topics {
		estimated := topics[i].EstimatedTimeMinutes
		if currentDayMinutes+estimated > dailyLimitMinutes {
			currentDate = currentDate.AddDate(0, 0, 1)
			currentDayMinutes = 0
		}
		topics[i].AssignedDate = currentDate
		currentDayMinutes += estimated
	}

	assignDayIndexes(topics)
	return topics
}

// assignDayIndexes stamps 1-based ordinals on each distinct assigned date, in
// order of first appearance; topics sharing a date share the index.
func assignDayIndexes(topics []model.Topic) {
	seen := make(map[string]int)
	next := 1
	for i := range topics {
		key := topics[i].AssignedDate.Format("2006-01-02")
		idx, ok := seen[key]
		if !ok {
			idx = next
			seen[key] = idx
			next++
		}
		topics[i].DayIndex = idx
	}
}
