package access

import (
	"seguimiento/apperr"
	"seguimiento/models"

	"github.com/google/uuid"
)

type Op int

const (
	OpListAlumnos Op = iota
	OpViewAlumno
	OpCreateAlumno
	OpUpdateAlumno
	OpDeleteAlumno
	OpChangeEstado
	OpAddObservacion
	OpAssignMaestro
	OpViewActivity
	OpViewStats
	OpViewMaestroStats
	OpManageEstados
	OpManageBolsas
	OpManageMaestros
	OpListPersonas
	OpViewPersona
	OpUpdatePersona
	OpChangePerfil
	OpAddRole
)

var opNames = map[Op]string{
	OpListAlumnos:      "list_alumnos",
	OpViewAlumno:       "view_alumno",
	OpCreateAlumno:     "create_alumno",
	OpUpdateAlumno:     "update_alumno",
	OpDeleteAlumno:     "delete_alumno",
	OpChangeEstado:     "change_estado",
	OpAddObservacion:   "add_observacion",
	OpAssignMaestro:    "assign_maestro",
	OpViewActivity:     "view_activity",
	OpViewStats:        "view_stats",
	OpViewMaestroStats: "view_maestro_stats",
	OpManageEstados:    "manage_estados",
	OpManageBolsas:     "manage_bolsas",
	OpManageMaestros:   "manage_maestros",
	OpListPersonas:     "list_personas",
	OpViewPersona:      "view_persona",
	OpUpdatePersona:    "update_persona",
	OpChangePerfil:     "change_perfil",
	OpAddRole:          "add_role",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "unknown"
}

// Resource is the target of an operation. Alumno must have its Tarjeta
// loaded for teacher checks. MaestroID is the teacher a stats request is
// about.
type Resource struct {
	Alumno    *models.Alumno
	MaestroID *uuid.UUID
}

type Decision struct {
	Allowed bool
	Reason  string
	kind    apperr.Kind
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision {
	return Decision{Reason: reason, kind: apperr.KindForbidden}
}

// Err converts a denial into an error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.New(d.kind, "%s", d.Reason)
}

// Evaluate decides whether a may perform op on res. Each operation is checked
// on its own; there is no inheritance between roles.
func Evaluate(a *Actor, op Op, res Resource) Decision {
	if a == nil {
		return Decision{Reason: "no autenticado", kind: apperr.KindUnauthenticated}
	}

	switch op {
	case OpListAlumnos, OpCreateAlumno, OpViewActivity:
		return studentScope(a, nil)
	case OpViewAlumno, OpUpdateAlumno:
		return studentScope(a, res.Alumno)
	case OpChangeEstado, OpAddObservacion:
		if !a.CanMutate() {
			return deny("se requiere perfil de administrador o moderador")
		}
		return studentScope(a, res.Alumno)
	case OpDeleteAlumno, OpAssignMaestro, OpViewStats, OpManageEstados, OpManageMaestros,
		OpViewPersona, OpUpdatePersona:
		if a.IsAdmin() || a.IsPastor() {
			return allow()
		}
		return deny("se requiere rol de pastor o perfil de administrador")
	case OpViewMaestroStats:
		if a.IsAdmin() || a.IsPastor() {
			return allow()
		}
		if a.IsMaestro() && a.MaestroID != nil && res.MaestroID != nil && *a.MaestroID == *res.MaestroID {
			return allow()
		}
		return deny("solo puede consultar sus propias estadísticas")
	case OpManageBolsas, OpChangePerfil, OpAddRole:
		if a.IsAdmin() {
			return allow()
		}
		return deny("se requiere perfil de administrador")
	case OpListPersonas:
		if a.IsAdmin() || a.IsModerator() {
			return allow()
		}
		return deny("se requiere perfil de administrador o moderador")
	}

	return deny("operación no permitida")
}

// studentScope applies the role rules for student operations. A nil alumno
// checks only that the caller has some student visibility at all.
func studentScope(a *Actor, alumno *models.Alumno) Decision {
	switch {
	case a.IsAdmin(), a.IsPastor():
		return allow()
	case a.IsMaestro():
		if a.MaestroID == nil {
			return deny("no existe registro de maestro para el usuario")
		}
		if alumno == nil || alumno.AssignedTo(*a.MaestroID) {
			return allow()
		}
		return deny("el alumno no está asignado a este maestro")
	}
	return deny("el usuario no tiene un rol autorizado")
}

// Visibility describes which students a caller can see. All wins over
// MaestroID.
type Visibility struct {
	All       bool
	MaestroID *uuid.UUID
}

// VisibleStudents returns the caller's student visibility or the denial for
// callers with none.
func VisibleStudents(a *Actor) (Visibility, error) {
	if err := Evaluate(a, OpListAlumnos, Resource{}).Err(); err != nil {
		return Visibility{}, err
	}
	if a.IsAdmin() || a.IsPastor() {
		return Visibility{All: true}, nil
	}
	return Visibility{MaestroID: a.MaestroID}, nil
}
