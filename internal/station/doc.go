// Package station manages the physical layout of the treatment floor:
// treatment areas (dialysis bays, ICU wings) and the individual stations
// within them where patients are treated and devices are assigned.
package station
