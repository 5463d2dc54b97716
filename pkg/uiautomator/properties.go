package uiautomator

import "context"

// Property accessors are derived from a single Info snapshot and fail with
// the same SearchError as Info when nothing matches.

func (o *Object) stringProp(ctx context.Context, get func(*Info) string) (string, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return "", err
	}
	return get(info), nil
}

func (o *Object) boolProp(ctx context.Context, get func(*Info) bool) (bool, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return false, err
	}
	return get(info), nil
}

// Text returns the text value.
func (o *Object) Text(ctx context.Context) (string, error) {
	return o.stringProp(ctx, func(i *Info) string { return i.Text })
}

// ClassName returns the widget class name.
func (o *Object) ClassName(ctx context.Context) (string, error) {
	return o.stringProp(ctx, func(i *Info) string { return i.ClassName })
}

// Description returns the content description.
func (o *Object) Description(ctx context.Context) (string, error) {
	return o.stringProp(ctx, func(i *Info) string { return i.ContentDescription })
}

// Hint returns the hint text.
func (o *Object) Hint(ctx context.Context) (string, error) {
	return o.stringProp(ctx, func(i *Info) string { return i.Hint })
}

// PackageName returns the package of the owning app.
func (o *Object) PackageName(ctx context.Context) (string, error) {
	return o.stringProp(ctx, func(i *Info) string { return i.PackageName })
}

// ResourceID returns the fully qualified resource name.
func (o *Object) ResourceID(ctx context.Context) (string, error) {
	return o.stringProp(ctx, func(i *Info) string { return i.ResourceName })
}

// Checkable reports whether the element can be checked.
func (o *Object) Checkable(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Checkable })
}

// Checked reports whether the element is checked.
func (o *Object) Checked(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Checked })
}

// Clickable reports whether the element accepts clicks.
func (o *Object) Clickable(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Clickable })
}

// Enabled reports whether the element is enabled.
func (o *Object) Enabled(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Enabled })
}

// Focusable reports whether the element can take focus.
func (o *Object) Focusable(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Focusable })
}

// Focused reports whether the element has focus.
func (o *Object) Focused(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Focused })
}

// LongClickable reports whether the element accepts long clicks.
func (o *Object) LongClickable(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.LongClickable })
}

// Scrollable reports whether the element can scroll.
func (o *Object) Scrollable(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Scrollable })
}

// Selected reports whether the element is selected.
func (o *Object) Selected(ctx context.Context) (bool, error) {
	return o.boolProp(ctx, func(i *Info) bool { return i.Selected })
}

// DisplayID returns the ID of the display containing the element.
func (o *Object) DisplayID(ctx context.Context) (int, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.DisplayID, nil
}

// VisibleBounds returns the visible bounds.
func (o *Object) VisibleBounds(ctx context.Context) (Rect, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return Rect{}, err
	}
	return info.VisibleBounds, nil
}

// VisibleCenter returns the center of the visible bounds.
func (o *Object) VisibleCenter(ctx context.Context) (Point, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return Point{}, err
	}
	return info.VisibleCenter, nil
}
