package backend

import (
	"context"
	"encoding/json"

	"shipportal/internal/model"
)

const (
	EndpointLogin          = "login"
	EndpointInsertShipment = "insertShipment"
	EndpointUpdateShipment = "updateShipment"
	EndpointActiveList     = "shipmentactivelist"
	EndpointTrack          = "track"
	EndpointCommodity      = "getCommodity"
	EndpointServices       = "getServices"
	EndpointPaymentModes   = "get_payment_modes"
	EndpointCategory       = "getCategory"
	EndpointPincode        = "getPincodeDetails"
	EndpointAreas          = "getAreaList"
	EndpointAddressBook    = "getAddressBook"
	EndpointAddAddress     = "addAddress"
	EndpointUpdateAddress  = "updateAddress"
	EndpointDeleteAddress  = "deleteAddress"
	EndpointUpdateProfile  = "updateProfile"
)

// Login exchanges credentials for the customer profile and backend token.
func (c *Client) Login(ctx context.Context, email, password string) (model.Customer, error) {
	env, err := c.Call(ctx, EndpointLogin, "", map[string]string{
		"email":     email,
		"password":  password,
		"fcm_token": c.fcmToken,
	})
	if err != nil {
		return model.Customer{}, err
	}
	recs, err := decodeRecords(env.Data, "Customerdetail", "customerdetail", "customer")
	if err != nil || len(recs) == 0 {
		return model.Customer{}, &Error{Kind: KindDecode, Endpoint: EndpointLogin, Err: err}
	}
	r := recs[0]
	cust := model.Customer{
		ID:     r.String("id", "customer_id", "cust_id"),
		Token:  r.String("token", "access_token"),
		Name:   r.String("name", "customer_name"),
		Email:  r.String("email"),
		Mobile: r.String("mobile", "phone"),
	}
	if cust.ID == "" || cust.Token == "" {
		return model.Customer{}, &Error{Kind: KindDecode, Endpoint: EndpointLogin, Message: "login response missing customer id or token"}
	}
	return cust, nil
}

// InsertShipment creates a shipment and returns the backend-assigned ID.
func (c *Client) InsertShipment(ctx context.Context, token string, p model.Payload) (string, error) {
	return c.submit(ctx, EndpointInsertShipment, token, p)
}

// UpdateShipment edits an existing shipment.
func (c *Client) UpdateShipment(ctx context.Context, token string, p model.Payload) (string, error) {
	return c.submit(ctx, EndpointUpdateShipment, token, p)
}

func (c *Client) submit(ctx context.Context, endpoint, token string, p model.Payload) (string, error) {
	env, err := c.Call(ctx, endpoint, token, p)
	if err != nil {
		return "", err
	}
	if id := env.ShipmentID.String(); id != "" {
		return id, nil
	}
	recs, _ := decodeRecords(env.Data)
	if len(recs) > 0 {
		return recs[0].String("shipment_id", "id"), nil
	}
	return p["shipment_id"], nil
}

// ActiveShipments lists the customer's shipments.
func (c *Client) ActiveShipments(ctx context.Context, token, customerID string) ([]Record, error) {
	env, err := c.Call(ctx, EndpointActiveList, token, map[string]string{"customer_id": customerID})
	if err != nil {
		return nil, err
	}
	return c.records(EndpointActiveList, env.Data, "shipments", "list")
}

// Shipment fetches one shipment from the active list. found is false when the
// backend has no such record.
func (c *Client) Shipment(ctx context.Context, token, customerID, shipmentID string) (Record, bool, error) {
	env, err := c.Call(ctx, EndpointActiveList, token, map[string]string{
		"customer_id": customerID,
		"shipment_id": shipmentID,
	})
	if err != nil {
		return nil, false, err
	}
	recs, err := c.records(EndpointActiveList, env.Data, "shipments", "list")
	if err != nil {
		return nil, false, err
	}
	for _, r := range recs {
		if r.String("shipment_id", "id") == shipmentID {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// Track fetches tracking details. The first record is returned.
func (c *Client) Track(ctx context.Context, token, shipmentID string) (Record, bool, error) {
	env, err := c.Call(ctx, EndpointTrack, token, map[string]string{"shipment_id": shipmentID})
	if err != nil {
		return nil, false, err
	}
	recs, err := c.records(EndpointTrack, env.Data, "shipment", "tracking")
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0], true, nil
}

func (c *Client) Categories(ctx context.Context, token string) ([]model.SelectOption, error) {
	return c.options(ctx, EndpointCategory, token, nil, []string{"id", "category_id"}, []string{"name", "category_name"})
}

func (c *Client) Commodities(ctx context.Context, token string) ([]model.SelectOption, error) {
	return c.options(ctx, EndpointCommodity, token, nil, []string{"id", "commodity_id"}, []string{"name", "commodity_name"})
}

func (c *Client) Services(ctx context.Context, token string) ([]model.SelectOption, error) {
	return c.options(ctx, EndpointServices, token, nil, []string{"id", "service_id"}, []string{"name", "service_name", "service_type"})
}

func (c *Client) PaymentModes(ctx context.Context, token string) ([]model.SelectOption, error) {
	return c.options(ctx, EndpointPaymentModes, token, nil, []string{"id", "payment_mode_id"}, []string{"name", "payment_mode", "mode"})
}

// PincodeDetails is what getPincodeDetails resolves a pincode to.
type PincodeDetails struct {
	Pincode string             `json:"pincode"`
	State   model.SelectOption `json:"state"`
	City    model.SelectOption `json:"city"`
	Country model.SelectOption `json:"country"`
}

func (c *Client) PincodeDetails(ctx context.Context, token, pincode string) (PincodeDetails, error) {
	env, err := c.Call(ctx, EndpointPincode, token, map[string]string{"pincode": pincode})
	if err != nil {
		return PincodeDetails{}, err
	}
	recs, err := c.records(EndpointPincode, env.Data)
	if err != nil {
		return PincodeDetails{}, err
	}
	if len(recs) == 0 {
		return PincodeDetails{}, &Error{Kind: KindStatus, Endpoint: EndpointPincode, Message: "pincode not found"}
	}
	r := recs[0]
	return PincodeDetails{
		Pincode: pincode,
		State:   model.SelectOption{Value: r.String("state_id"), Label: r.String("state_name", "state")},
		City:    model.SelectOption{Value: r.String("city_id"), Label: r.String("city_name", "city")},
		Country: model.SelectOption{Value: r.String("country_id"), Label: r.String("country_name", "country")},
	}, nil
}

func (c *Client) Areas(ctx context.Context, token, pincode string) ([]model.SelectOption, error) {
	return c.options(ctx, EndpointAreas, token, map[string]string{"pincode": pincode},
		[]string{"id", "area_id"}, []string{"name", "area_name", "area"})
}

func (c *Client) AddressBook(ctx context.Context, token, customerID string) ([]Record, error) {
	env, err := c.Call(ctx, EndpointAddressBook, token, map[string]string{"customer_id": customerID})
	if err != nil {
		return nil, err
	}
	return c.records(EndpointAddressBook, env.Data, "addresses")
}

// AddAddress, UpdateAddress, DeleteAddress and UpdateProfile pass fields through.
func (c *Client) AddAddress(ctx context.Context, token string, fields map[string]string) error {
	_, err := c.Call(ctx, EndpointAddAddress, token, fields)
	return err
}

func (c *Client) UpdateAddress(ctx context.Context, token string, fields map[string]string) error {
	_, err := c.Call(ctx, EndpointUpdateAddress, token, fields)
	return err
}

func (c *Client) DeleteAddress(ctx context.Context, token, customerID, addressID string) error {
	_, err := c.Call(ctx, EndpointDeleteAddress, token, map[string]string{"customer_id": customerID, "address_id": addressID})
	return err
}

func (c *Client) UpdateProfile(ctx context.Context, token string, fields map[string]string) error {
	_, err := c.Call(ctx, EndpointUpdateProfile, token, fields)
	return err
}

func (c *Client) options(ctx context.Context, endpoint, token string, fields map[string]string, idKeys, labelKeys []string) ([]model.SelectOption, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	env, err := c.Call(ctx, endpoint, token, fields)
	if err != nil {
		return nil, err
	}
	recs, err := c.records(endpoint, env.Data)
	if err != nil {
		return nil, err
	}
	return options(recs, idKeys, labelKeys), nil
}

func (c *Client) records(endpoint string, data json.RawMessage, wrapKeys ...string) ([]Record, error) {
	recs, err := decodeRecords(data, wrapKeys...)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Endpoint: endpoint, Err: err}
	}
	return recs, nil
}
