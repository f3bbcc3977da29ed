package notifications

import (
	"fmt"
	"strconv"

	"home-service-server/models"
)

type message struct{ title, body string }

var jobStatusMessages = map[models.JobStatus]message{
	models.JobStatusOnTheWay:   {"Serviceman On The Way", "%s is on the way to your address."},
	models.JobStatusArrived:    {"Serviceman Arrived", "%s has arrived at your address."},
	models.JobStatusInProgress: {"Work Started", "%s has started working on your request."},
	models.JobStatusCompleted:  {"Service Completed", "%s has completed your service request."},
}

func describe(ev Event, req *models.ServiceRequest) (string, string) {
	who := ev.ServicemanName
	if who == "" {
		who = "Your service professional"
	}

	switch ev.Name {
	case EventRequestCreated:
		return "Service Request Created", fmt.Sprintf("Your %s request has been received and is waiting for a serviceman.", req.ServiceType)
	case EventJobAccepted:
		return "Service Request Accepted", fmt.Sprintf("%s has accepted your service request.", who)
	case EventJobStatusChanged:
		if m, ok := jobStatusMessages[ev.JobStatus]; ok {
			return m.title, fmt.Sprintf(m.body, who)
		}
	case EventRequestWithdrawn:
		return "Service Cancelled", fmt.Sprintf("Service request #%d has been withdrawn.", req.ID)
	case EventPaymentRequired:
		if req.FinalPrice != nil {
			return "Payment Required", fmt.Sprintf("The final price for request #%d is %.2f. Please complete the payment.", req.ID, *req.FinalPrice)
		}
		return "Payment Required", fmt.Sprintf("Please complete the payment for request #%d.", req.ID)
	case EventPaymentReceived:
		return "Payment Received", fmt.Sprintf("The customer has paid for request #%d.", req.ID)
	case EventAssignmentReminder:
		return "Job Waiting", fmt.Sprintf("Request #%d is still waiting for you to head out.", req.ID)
	}
	return "Service Update", "Your service request status has been updated."
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
