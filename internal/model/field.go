package model

// Field names a draft or line-item field. The same names are used by the
// HTTP API, the focus layout and the change handlers.
type Field string

const (
	FieldContractNumber   Field = "contractNo"
	FieldContractType     Field = "contractType"
	FieldCustomer         Field = "customer"
	FieldCallType         Field = "callType"
	FieldIndustry         Field = "industry"
	FieldTechnician       Field = "technician"
	FieldSupervisor       Field = "supervisor"
	FieldSalesPerson      Field = "salesPerson"
	FieldBillingFrequency Field = "billingFrequency"
	FieldStartDate        Field = "startDate"
	FieldEndDate          Field = "endDate"
	FieldReminderDate     Field = "reminderDate"
	FieldTimeFrom         Field = "timeFrom"
	FieldTimeTo           Field = "timeTo"
	FieldContractValue    Field = "contractValue"
	FieldInvoiceCount     Field = "invoiceCount"
	FieldTaxPercent       Field = "taxPercent"
	FieldAddress          Field = "address"
	FieldPostalCode       Field = "postalCode"
	FieldContactName      Field = "contactName"
	FieldPhone            Field = "phone"
	FieldMobile           Field = "mobile"
	FieldEmail            Field = "email"
	FieldRemarks          Field = "remarks"
	FieldBillingRemarks   Field = "billingRemarks"

	FieldLinePest      Field = "pestLine.pest"
	FieldLineFrequency Field = "pestLine.frequency"
	FieldLineChemical  Field = "pestLine.chemical"
	FieldLineCount     Field = "pestLine.count"
	FieldLineValue     Field = "pestLine.value"
	FieldLineWorkTime  Field = "pestLine.workTime"
	FieldLineItemCount Field = "pestLine.itemCount"
)

// IsLineField reports whether the field belongs to the pest line buffer.
func (f Field) IsLineField() bool {
	switch f {
	case FieldLinePest, FieldLineFrequency, FieldLineChemical,
		FieldLineCount, FieldLineValue, FieldLineWorkTime, FieldLineItemCount:
		return true
	}
	return false
}
