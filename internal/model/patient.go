package model

type SituationStatus string

const (
	SituationAtHome         SituationStatus = "AtHome"
	SituationInEmergency    SituationStatus = "InEmergency"
	SituationWaitToResponse SituationStatus = "WaitToResponse"
)

func (s SituationStatus) Valid() bool {
	switch s {
	case SituationAtHome, SituationInEmergency, SituationWaitToResponse:
		return true
	}
	return false
}

type Patient struct {
	ID              int64            `db:"patient_id" json:"patient_id"`
	UserID          int64            `db:"user_id" json:"user_id"`
	HospitalNumber  *string          `db:"hospital_number" json:"hospital_number"`
	Address         *string          `db:"address" json:"address"`
	SituationStatus *SituationStatus `db:"situation_status" json:"situation_status"`
}

// Situation returns the stored status, AtHome when unset.
func (p *Patient) Situation() SituationStatus {
	if p.SituationStatus == nil || *p.SituationStatus == "" {
		return SituationAtHome
	}
	return *p.SituationStatus
}

type UpdatePatientStatusRequest struct {
	Status SituationStatus `json:"status" binding:"required"`
}
