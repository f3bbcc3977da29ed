package services

import "home-service-server/models"

// nextStage lists the only job status a serviceman may advance to from each stage.
// Claim and withdrawal have their own operations and are not reachable through advance.
var nextStage = map[models.Stage]models.Stage{
	models.StageAssigned:   models.StageOnTheWay,
	models.StageOnTheWay:   models.StageArrived,
	models.StageArrived:    models.StageInProgress,
	models.StageInProgress: models.StageCompleted,
}

// ValidAdvance reports whether a request at stage may move to the requested job status
func ValidAdvance(from models.Stage, to models.JobStatus) bool {
	next, ok := nextStage[from]
	return ok && models.JobStatus(next) == to
}

// ParseJobStatus accepts the job statuses a serviceman can request
func ParseJobStatus(value string) (models.JobStatus, bool) {
	switch s := models.JobStatus(value); s {
	case models.JobStatusPending, models.JobStatusAssigned, models.JobStatusOnTheWay,
		models.JobStatusArrived, models.JobStatusInProgress, models.JobStatusCompleted:
		return s, true
	}
	return "", false
}
