package template

// ToMap converts a Template to a map[string]interface{} for serialization.
func (t *Template) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"apiVersion": t.APIVersion,
		"kind":       t.Kind,
		"metadata":   metadataToMap(t.Metadata),
		"spec":       specToMap(t.Spec),
	}
}

func metadataToMap(m Metadata) map[string]interface{} {
	result := map[string]interface{}{
		"name": m.Name,
	}

	if m.Title != "" {
		result["title"] = m.Title
	}

	if m.Description != "" {
		result["description"] = m.Description
	}

	if len(m.Tags) > 0 {
		tags := make([]interface{}, len(m.Tags))
		for i, t := range m.Tags {
			tags[i] = t
		}

		result["tags"] = tags
	}

	if len(m.Labels) > 0 {
		result["labels"] = stringMap(m.Labels)
	}

	if len(m.Annotations) > 0 {
		result["annotations"] = stringMap(m.Annotations)
	}

	return result
}

func specToMap(s Spec) map[string]interface{} {
	result := make(map[string]interface{})

	if s.Owner != "" {
		result["owner"] = s.Owner
	}

	if s.Type != "" {
		result["type"] = s.Type
	}

	params := make([]interface{}, len(s.Parameters))
	for i, p := range s.Parameters {
		params[i] = p.ToMap()
	}

	result["parameters"] = params

	steps := make([]interface{}, len(s.Steps))
	for i, st := range s.Steps {
		steps[i] = st.ToMap()
	}

	result["steps"] = steps

	if s.Output != nil && len(s.Output.Links) > 0 {
		links := make([]interface{}, len(s.Output.Links))

		for i, l := range s.Output.Links {
			link := map[string]interface{}{
				"title": l.Title,
			}

			if l.URL != "" {
				link["url"] = l.URL
			}

			if l.EntityRef != "" {
				link["entityRef"] = l.EntityRef
			}

			if l.Icon != "" {
				link["icon"] = l.Icon
			}

			if l.If != "" {
				link["if"] = l.If
			}

			links[i] = link
		}

		result["output"] = map[string]interface{}{"links": links}
	}

	return result
}

// ToMap converts a ParameterSection to its JSON Schema form.
func (p ParameterSection) ToMap() map[string]interface{} {
	props := make(map[string]interface{}, len(p.Properties))
	for _, prop := range p.Properties {
		props[prop.Name] = prop.ToMap()
	}

	result := map[string]interface{}{
		"title":      p.Title,
		"properties": props,
	}

	if len(p.Required) > 0 {
		req := make([]interface{}, len(p.Required))
		for i, r := range p.Required {
			req[i] = r
		}

		result["required"] = req
	}

	return result
}

// ToMap converts a Property to its JSON Schema form.
func (p Property) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"type": p.Type,
	}

	if p.Title != "" {
		result["title"] = p.Title
	}

	if p.Description != "" {
		result["description"] = p.Description
	}

	if p.Default != nil {
		result["default"] = p.Default
	}

	if len(p.Enum) > 0 {
		result["enum"] = append([]interface{}(nil), p.Enum...)
	}

	if p.Pattern != "" {
		result["pattern"] = p.Pattern
	}

	if p.MinLength != nil {
		result["minLength"] = *p.MinLength
	}

	if p.MaxLength != nil {
		result["maxLength"] = *p.MaxLength
	}

	if p.Minimum != nil {
		result["minimum"] = *p.Minimum
	}

	if p.Maximum != nil {
		result["maximum"] = *p.Maximum
	}

	if p.ItemsType != "" {
		result["items"] = map[string]interface{}{"type": p.ItemsType}
	}

	if p.UIField != "" {
		result["ui:field"] = p.UIField
	}

	if len(p.UIOptions) > 0 {
		result["ui:options"] = p.UIOptions
	}

	return result
}

// ToMap converts a Step to its manifest form.
func (s Step) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"id":     s.ID,
		"name":   s.Name,
		"action": s.Action,
	}

	if len(s.Input) > 0 {
		result["input"] = s.Input
	}

	if s.If != "" {
		result["if"] = s.If
	}

	return result
}

func stringMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
