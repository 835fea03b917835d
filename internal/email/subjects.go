package email

const (
	subjectAssignmentFmt    = "Nueva incidencia asignada: %s"
	subjectRatingInvitation = "Su incidencia fue resuelta, cuéntenos cómo le fue"
	subjectPosventaReviewed = "Su formulario de posventa fue revisado"
	subjectVisitDigestFmt   = "Visitas sugeridas para el %s"
)

var verdictLabels = map[string]string{
	"aprobada":          "Aprobada",
	"con_observaciones": "Aprobada con observaciones",
	"rechazada":         "Rechazada",
}
