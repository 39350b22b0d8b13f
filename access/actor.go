// Package access resolves the caller behind a token and decides what the
// caller may do.
package access

import (
	"context"
	"slices"

	"seguimiento/apperr"
	"seguimiento/models"

	"github.com/google/uuid"
)

// Actor is a resolved caller: the person, its access profile, its roles and,
// for teachers, the teacher record id.
type Actor struct {
	Persona   models.Persona
	Profile   models.Profile
	Roles     []int16
	MaestroID *uuid.UUID
}

func (a *Actor) Level() int16 { return a.Profile.NivelAcceso }

func (a *Actor) IsAdmin() bool { return a.Level() == models.NivelAdministrador }

func (a *Actor) IsModerator() bool { return a.Level() == models.NivelModerador }

// CanMutate reports whether the profile allows status changes and
// observations.
func (a *Actor) CanMutate() bool { return a.IsAdmin() || a.IsModerator() }

func (a *Actor) HasRole(role int16) bool { return slices.Contains(a.Roles, role) }

func (a *Actor) IsPastor() bool { return a.HasRole(models.RolePastor) }

func (a *Actor) IsMaestro() bool { return a.HasRole(models.RoleMaestro) }

// Directory is the identity storage the resolver reads from.
type Directory interface {
	PersonaByAuthID(ctx context.Context, authUserID string) (*models.Persona, error)
	ProfileByID(ctx context.Context, id int16) (*models.Profile, error)
	RoleIDs(ctx context.Context, personaID uuid.UUID) ([]int16, error)
	MaestroByPersona(ctx context.Context, personaID uuid.UUID) (*models.Maestro, error)
}

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve maps a token subject to an Actor. A subject with no person is
// NotFound. A person whose profile reference dangles is NotFound as well. An
// empty role set is returned as is.
func (r *Resolver) Resolve(ctx context.Context, subject string) (*Actor, error) {
	persona, err := r.dir.PersonaByAuthID(ctx, subject)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Wrap(err, apperr.KindNotFound, "persona no encontrada")
		}
		return nil, err
	}

	profile, err := r.dir.ProfileByID(ctx, persona.ProfileID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Wrap(err, apperr.KindNotFound, "perfil %d no encontrado", persona.ProfileID)
		}
		return nil, err
	}

	roles, err := r.dir.RoleIDs(ctx, persona.ID)
	if err != nil {
		return nil, err
	}

	actor := &Actor{Persona: *persona, Profile: *profile, Roles: roles}

	if actor.IsMaestro() {
		m, err := r.dir.MaestroByPersona(ctx, persona.ID)
		switch {
		case err == nil:
			actor.MaestroID = &m.ID
		case !apperr.Is(err, apperr.KindNotFound):
			return nil, err
		}
	}

	return actor, nil
}
