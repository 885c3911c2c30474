package appointment

import (
	"context"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
)

const dateLayout = "Mon, 02 Jan 2006"

func patientKind(status model.AppointmentStatus) (notification.Kind, bool) {
	switch status {
	case model.AppointmentStatusApproved:
		return notification.KindAppointmentApproved, true
	case model.AppointmentStatusSuspended:
		return notification.KindAppointmentSuspended, true
	case model.AppointmentStatusCancelled:
		return notification.KindAppointmentCancelled, true
	}
	return "", false
}

func caregiverKind(status model.AppointmentStatus) (notification.Kind, bool) {
	switch status {
	case model.AppointmentStatusApproved:
		return notification.KindCaregiverAssignment, true
	case model.AppointmentStatusSuspended:
		return notification.KindAppointmentSuspended, true
	}
	return "", false
}

func scheduleLabel(apt *model.Appointment) string {
	if apt.AppointmentDate != nil {
		return apt.AppointmentDate.Format(dateLayout)
	}
	label := apt.RequestedDate.Format(dateLayout)
	if apt.RequestedTime != "" {
		label += " " + apt.RequestedTime
	}
	return label
}

// notifyParticipants emails the patient and, when assigned, the caregiver.
// Lookup failures only cost that recipient its email.
func (s *Service) notifyParticipants(ctx context.Context, apt *model.Appointment, caregiver *model.Caregiver) {
	if caregiver == nil && apt.CaregiverID != nil {
		c, err := s.caregivers.Get(ctx, *apt.CaregiverID)
		if err != nil {
			s.log.Error(err, "failed to load caregiver for notification", "appointment_id", apt.ID.String())
		} else {
			caregiver = c
		}
	}

	counterpart := ""
	if caregiver != nil {
		counterpart = caregiver.FullName()
	}
	patient := s.notifyPatient(ctx, apt, kindOrEmpty(patientKind(apt.Status)), counterpart)

	if caregiver == nil {
		return
	}
	kind, ok := caregiverKind(apt.Status)
	if !ok {
		return
	}
	data := notification.Data{
		Name:       caregiver.FullName(),
		Department: apt.Department,
		Date:       scheduleLabel(apt),
	}
	if patient != nil {
		data.Counterpart = patient.FullName()
	}
	s.notifier.Notify(ctx, notification.Message{Kind: kind, To: caregiver.Email, Data: data})
}

// notifyPatient returns the loaded patient so callers can reuse the name.
func (s *Service) notifyPatient(ctx context.Context, apt *model.Appointment, kind notification.Kind, counterpart string) *model.Patient {
	if kind == "" {
		return nil
	}
	patient, err := s.patients.Get(ctx, apt.PatientID)
	if err != nil {
		s.log.Error(err, "failed to load patient for notification", "appointment_id", apt.ID.String())
		return nil
	}
	s.notifier.Notify(ctx, notification.Message{
		Kind: kind,
		To:   patient.Email,
		Data: notification.Data{
			Name:        patient.FullName(),
			Department:  apt.Department,
			Date:        scheduleLabel(apt),
			Counterpart: counterpart,
		},
	})
	return patient
}

func kindOrEmpty(kind notification.Kind, ok bool) notification.Kind {
	if !ok {
		return ""
	}
	return kind
}
