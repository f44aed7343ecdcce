package domain

// StatusCount is the number of bugs in one status.
type StatusCount struct {
	Status BugStatus
	Count  int64
}

// PriorityCount is the number of bugs with one priority.
type PriorityCount struct {
	Priority BugPriority
	Count    int64
}

// DailyCount is the number of bugs created on one calendar day (YYYY-MM-DD).
type DailyCount struct {
	Date  string
	Count int64
}

// ResolutionTime is the mean age in days of finished bugs for one priority.
type ResolutionTime struct {
	Priority BugPriority
	AvgDays  float64
}
