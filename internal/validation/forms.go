package validation

import (
	"shipportal/internal/model"
	"shipportal/internal/normalize"
)

// Flat string views of the draft, one per step, carrying the rule tags.

type shipmentForm struct {
	Name           string   `json:"name" validate:"required"`
	Category       string   `json:"category" validate:"required"`
	Commodity      []string `json:"commodity" validate:"min=1,dive,required"`
	NetWeight      string   `json:"netWeight" validate:"required,positive"`
	GrossWeight    string   `json:"grossWeight" validate:"required,positive"`
	PaymentMode    string   `json:"paymentMode" validate:"required"`
	ServiceType    string   `json:"serviceType" validate:"required"`
	NumberOfParcel string   `json:"numberOfParcel" validate:"required,positive"`
	InvoiceValue   string   `json:"invoiceValue" validate:"required,positive"`
	InvoiceNumber  string   `json:"invoiceNumber" validate:"required"`
}

type addressForm struct {
	Name         string `json:"name" validate:"required,min=2,max=100,personname"`
	CompanyName  string `json:"companyName" validate:"required,min=2,max=100"`
	ZipCode      string `json:"zipCode" validate:"required,pincode"`
	State        string `json:"state" validate:"required,min=2,max=50,placename"`
	City         string `json:"city" validate:"required,min=2,max=50,placename"`
	AddressLine1 string `json:"addressLine1" validate:"required,min=5,max=200"`
	Mobile       string `json:"mobile" validate:"required,len=10,numeric,mobilestart"`
	Email        string `json:"email" validate:"required,portalemail"`
	AddressType  string `json:"addressType" validate:"required,oneof=new existing"`
}

type addressesForm struct {
	Sender   addressForm `json:"sender"`
	Receiver addressForm `json:"receiver"`
	BillTo   string      `json:"billTo" validate:"required,oneof=sender receiver"`
}

type deliveryForm struct {
	Name         string `json:"name" validate:"required,min=2,max=100,personname"`
	CompanyName  string `json:"companyName" validate:"required,min=2,max=100"`
	ZipCode      string `json:"zipCode" validate:"required,pincode"`
	State        string `json:"state" validate:"required,min=2,max=50,placename"`
	City         string `json:"city" validate:"required,min=2,max=50,placename"`
	GSTNo        string `json:"gstNo" validate:"omitempty,gstin"`
	AddressLine1 string `json:"addressLine1" validate:"required,min=5,max=200"`
	Mobile       string `json:"mobile" validate:"required,len=10,numeric,mobilestart"`
	Email        string `json:"email" validate:"required,portalemail"`
}

type deliveryRoot struct {
	DeliveryAddress deliveryForm `json:"deliveryAddress"`
}

func shipmentFormOf(d model.ShipmentDraft) shipmentForm {
	return shipmentForm{
		Name:           text(d.Name),
		Category:       text(d.Category),
		Commodity:      normalize.Values(d.Commodity),
		NetWeight:      text(d.NetWeight),
		GrossWeight:    text(d.GrossWeight),
		PaymentMode:    text(d.PaymentMode),
		ServiceType:    text(d.ServiceType),
		NumberOfParcel: text(d.NumberOfParcel),
		InvoiceValue:   text(d.InvoiceValue),
		InvoiceNumber:  text(d.InvoiceNumber),
	}
}

func addressFormOf(a model.Address) addressForm {
	return addressForm{
		Name:         text(a.Name),
		CompanyName:  text(a.CompanyName),
		ZipCode:      text(a.ZipCode),
		State:        display(a.State),
		City:         display(a.City),
		AddressLine1: text(a.AddressLine1),
		Mobile:       text(a.Mobile),
		Email:        text(a.Email),
		AddressType:  text(a.AddressType),
	}
}

func addressesFormOf(d model.ShipmentDraft) addressesForm {
	return addressesForm{
		Sender:   addressFormOf(d.Sender),
		Receiver: addressFormOf(d.Receiver),
		BillTo:   text(d.BillTo),
	}
}

func deliveryFormOf(a model.Address) deliveryRoot {
	return deliveryRoot{DeliveryAddress: deliveryForm{
		Name:         text(a.Name),
		CompanyName:  text(a.CompanyName),
		ZipCode:      text(a.ZipCode),
		State:        display(a.State),
		City:         display(a.City),
		GSTNo:        text(a.GSTNo),
		AddressLine1: text(a.AddressLine1),
		Mobile:       text(a.Mobile),
		Email:        text(a.Email),
	}}
}
