package web

import (
	"math"

	"github.com/Zachkp/folio/internal/carousel"
	"github.com/Zachkp/folio/internal/catalog"
)

// wheelSpacing is the arc between neighbouring process steps, in degrees.
const wheelSpacing = 35.0

// carouselView is the template data for one carousel fragment.
type carouselView struct {
	Snapshot carousel.Snapshot

	// process
	Step  catalog.Step
	Wheel []wheelSlot

	// services
	Cards []serviceCard

	// gallery
	Shot     string
	Position int

	Dots []dot
}

type wheelSlot struct {
	Index  int
	Number string
	Angle  float64
	Active bool
}

type serviceCard struct {
	Service catalog.Service
	Offset  int
	Active  bool
}

type dot struct {
	Index  int
	Active bool
}

// wheel places every step on the arc relative to the active one. Each slot
// takes the copy of its index nearest to active, so steps wrap round the
// hidden side of the wheel instead of crossing the top.
func wheel(steps []catalog.Step, active int) []wheelSlot {
	n := len(steps)
	slots := make([]wheelSlot, n)
	for i, st := range steps {
		rel := i - active
		rel -= int(math.Round(float64(rel)/float64(n))) * n
		slots[i] = wheelSlot{
			Index:  i,
			Number: st.Number,
			Angle:  -90 + float64(rel)*wheelSpacing,
			Active: i == active,
		}
	}
	return slots
}

// stack orders service cards by their signed distance from the active card.
func stack(services []catalog.Service, active int) []serviceCard {
	n := len(services)
	cards := make([]serviceCard, n)
	for i, svc := range services {
		rel := i - active
		rel -= int(math.Round(float64(rel)/float64(n))) * n
		cards[i] = serviceCard{Service: svc, Offset: rel, Active: rel == 0}
	}
	return cards
}

func dots(count, active int) []dot {
	ds := make([]dot, count)
	for i := range ds {
		ds[i] = dot{Index: i, Active: i == active}
	}
	return ds
}

// fragment returns the template name and data for snap.
func (s *Server) fragment(snap carousel.Snapshot) (string, *carouselView, error) {
	site := s.catalog.Site()
	active := snap.State.ActiveIndex
	v := &carouselView{Snapshot: snap, Dots: dots(snap.State.ItemCount, active)}

	switch snap.Kind {
	case carousel.KindProcess:
		if active < len(site.Process) {
			v.Step = site.Process[active]
		}
		v.Wheel = wheel(site.Process, active)
		return "process-carousel", v, nil
	case carousel.KindServices:
		v.Cards = stack(site.Services, active)
		return "services-carousel", v, nil
	case carousel.KindGallery:
		p, err := s.catalog.Project(snap.ProjectID)
		if err != nil {
			return "", nil, err
		}
		shots := p.Screenshots(snap.View)
		if active < len(shots) {
			v.Shot = shots[active]
			v.Position = active + 1
		}
		return "gallery-carousel", v, nil
	}
	return "", nil, carousel.ErrUnknownKind
}
