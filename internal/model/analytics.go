package model

import "github.com/google/uuid"

// CountByKey is one row of a group-by rollup.
type CountByKey struct {
	Key   string `json:"_id" db:"key"`
	Count int    `json:"count" db:"count"`
}

type DashboardStats struct {
	TotalPatients       int          `json:"totalPatients"`
	TotalCaregivers     int          `json:"totalCaregivers"`
	TotalAppointments   int          `json:"totalAppointments"`
	PendingAppointments int          `json:"pendingAppointments"`
	ActiveAppointments  int          `json:"activeAppointments"`
	DepartmentStats     []CountByKey `json:"departmentStats"`
}

type AppointmentAnalytics struct {
	ByStatus             []CountByKey `json:"appointmentsByStatus"`
	ByDepartment         []CountByKey `json:"appointmentsByDepartment"`
	TodayAppointments    int          `json:"todayAppointments"`
	UpcomingAppointments int          `json:"upcomingAppointments"`
}

type CaregiverWorkload struct {
	CaregiverID uuid.UUID `json:"caregiverId" db:"caregiver_id"`
	FirstName   string    `json:"firstName" db:"first_name"`
	LastName    string    `json:"lastName" db:"last_name"`
	Department  string    `json:"department" db:"department"`
	Count       int       `json:"appointmentCount" db:"count"`
}

type CaregiverAnalytics struct {
	AvailableCaregivers    int                 `json:"availableCaregivers"`
	DepartmentDistribution []CountByKey        `json:"departmentDistribution"`
	Workload               []CaregiverWorkload `json:"caregiverWorkload"`
}

type PatientAnalytics struct {
	GenderDistribution []CountByKey `json:"genderDistribution"`
	AgeDistribution    []CountByKey `json:"ageDistribution"`
	NewPatients        int          `json:"newPatients"`
	PatientsByDept     []CountByKey `json:"patientsByDepartment"`
}
