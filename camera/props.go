package camera

import (
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/nasa-jpl/psfscan/util"
	"github.com/nasa-jpl/psfscan/xeneth"
)

// PropertyKind selects how a property value is sent to the camera
type PropertyKind string

const (
	// KindNum is a numeric property
	KindNum PropertyKind = "num"

	// KindBool is a boolean property, sent as 0 or 1
	KindBool PropertyKind = "bool"

	// KindStr is a text property
	KindStr PropertyKind = "str"
)

// ErrBadPropertyValue is returned when a value does not fit its kind
type ErrBadPropertyValue struct {
	Name  string
	Kind  PropertyKind
	Value interface{}
}

func (e ErrBadPropertyValue) Error() string {
	return fmt.Sprintf("property %s: %v (%T) is not a valid %s value", e.Name, e.Value, e.Value, e.Kind)
}

// PropertyInfo is the valid range and unit of a property
type PropertyInfo struct {
	Name  string `json:"name"`
	Range string `json:"range"`
	Unit  string `json:"unit"`
}

// PropertyCount returns how many properties the camera exposes
func (c *Camera) PropertyCount() (int, error) {
	h, err := c.readHandle()
	if err != nil {
		return 0, err
	}
	return c.drv.GetPropertyCount(h), nil
}

// PropertyName returns the name of the property at idx
func (c *Camera) PropertyName(idx int) (string, error) {
	h, err := c.readHandle()
	if err != nil {
		return "", err
	}
	name, code := c.drv.GetPropertyName(h, idx)
	return name, enrich(xeneth.Error(code), "XC_GetPropertyName")
}

// PropertyNames lists every property
func (c *Camera) PropertyNames() ([]string, error) {
	n, err := c.PropertyCount()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := c.PropertyName(i)
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// PropertyInfo asks the camera for the range and unit of a property
func (c *Camera) PropertyInfo(name string) (PropertyInfo, error) {
	h, err := c.readHandle()
	if err != nil {
		return PropertyInfo{}, err
	}
	info := PropertyInfo{Name: name}
	var code xeneth.ErrCode
	info.Range, code = c.drv.GetPropertyRange(h, name)
	if err := xeneth.Error(code); err != nil {
		return info, enrich(err, "XC_GetPropertyRange")
	}
	info.Unit, code = c.drv.GetPropertyUnit(h, name)
	return info, enrich(xeneth.Error(code), "XC_GetPropertyUnit")
}

// GetNumProperty reads a numeric property
func (c *Camera) GetNumProperty(name string) (float64, error) {
	h, err := c.readHandle()
	if err != nil {
		return 0, err
	}
	v, code := c.drv.GetPropertyValueF(h, name)
	return v, enrich(xeneth.Error(code), "XC_GetPropertyValueF "+name)
}

// GetBoolProperty reads a boolean property
func (c *Camera) GetBoolProperty(name string) (bool, error) {
	h, err := c.readHandle()
	if err != nil {
		return false, err
	}
	v, code := c.drv.GetPropertyValueL(h, name)
	return v != 0, enrich(xeneth.Error(code), "XC_GetPropertyValueL "+name)
}

// GetStringProperty reads a text property
func (c *Camera) GetStringProperty(name string) (string, error) {
	h, err := c.readHandle()
	if err != nil {
		return "", err
	}
	v, code := c.drv.GetPropertyValue(h, name)
	return v, enrich(xeneth.Error(code), "XC_GetPropertyValue "+name)
}

// GetProperty reads a property of any kind
func (c *Camera) GetProperty(name string, kind PropertyKind) (interface{}, error) {
	switch kind {
	case KindBool:
		return c.GetBoolProperty(name)
	case KindStr:
		return c.GetStringProperty(name)
	default:
		return c.GetNumProperty(name)
	}
}

// SetPropertyByIndex is SetProperty addressed by index
func (c *Camera) SetPropertyByIndex(idx int, value interface{}, kind PropertyKind) error {
	name, err := c.PropertyName(idx)
	if err != nil {
		return err
	}
	return c.SetProperty(name, value, kind)
}

// SetProperty writes a property, then reads and discards one frame so the
// next capture reflects the new setting.  Refused with ErrBusy while streaming
func (c *Camera) SetProperty(name string, value interface{}, kind PropertyKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.idleHandle()
	if err != nil {
		return err
	}
	if err := c.setProperty(h, name, value, kind); err != nil {
		return err
	}
	_, err = c.captureSingle(h, false)
	return err
}

// setProperty sends a value to the camera.  Must hold mu
func (c *Camera) setProperty(h xeneth.Handle, name string, value interface{}, kind PropertyKind) error {
	bad := ErrBadPropertyValue{Name: name, Kind: kind, Value: value}
	switch kind {
	case KindStr:
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		return enrich(xeneth.Error(c.drv.SetPropertyValue(h, name, s, "")), "XC_SetPropertyValue "+name)
	case KindBool:
		var b bool
		switch v := value.(type) {
		case bool:
			b = v
		case string:
			var err error
			b, err = strconv.ParseBool(v)
			if err != nil {
				return bad
			}
		default:
			f, ok := toFloat(value)
			if !ok {
				return bad
			}
			b = f != 0
		}
		var l int64
		if b {
			l = 1
		}
		return enrich(xeneth.Error(c.drv.SetPropertyValueL(h, name, l, "")), "XC_SetPropertyValueL "+name)
	case KindNum, "":
		switch v := value.(type) {
		case int:
			return enrich(xeneth.Error(c.drv.SetPropertyValueL(h, name, int64(v), "")), "XC_SetPropertyValueL "+name)
		case int64:
			return enrich(xeneth.Error(c.drv.SetPropertyValueL(h, name, v, "")), "XC_SetPropertyValueL "+name)
		}
		f, ok := toFloat(value)
		if !ok {
			return bad
		}
		return enrich(xeneth.Error(c.drv.SetPropertyValueF(h, name, f, "")), "XC_SetPropertyValueF "+name)
	default:
		return bad
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// KindOf guesses the kind of a property from the Go type of its value
func KindOf(v interface{}) PropertyKind {
	switch v.(type) {
	case bool:
		return KindBool
	case string:
		return KindStr
	default:
		return KindNum
	}
}

// Configure sets many properties at once, in name order, with the kind
// inferred from each value.  Every property is attempted; the errors are merged.
// One frame is dumped at the end
func (c *Camera) Configure(settings map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.idleHandle()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var errs []error
	for _, k := range keys {
		v := settings[k]
		if err := c.setProperty(h, k, v, KindOf(v)); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Printf("set %s to %v\n", k, v)
	}
	if len(keys) > 0 {
		if _, err := c.captureSingle(h, false); err != nil {
			errs = append(errs, err)
		}
	}
	return util.MergeErrors(errs)
}
